package defra

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"bae-0b1e2f3a-aaaa-bbbb-cccc-123456789abc", false},
		{"simple_id", false},
		{"", true},
		{`bad"id`, true},
		{"has space", true},
		{strings.Repeat("a", 501), true},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) error = %v, want ErrInvalidID", tt.id, err)
		}
	}
}

func TestQueryBuilder_Build(t *testing.T) {
	query, vars := NewQuery("Prompt").
		Filter("user_id", "u1").
		FilterAny("tags", "writing").
		Search("haiku", "title", "content").
		Fields("_docID", "title").
		OrderBy("created_at", DESC).
		Limit(10).
		Offset(20).
		Build()

	want := `query($v0: String, $v1: String, $v2: String) { Prompt(filter: {user_id: {_eq: $v0}, tags: {_any: {_eq: $v1}}, _or: [{title: {_ilike: $v2}}, {content: {_ilike: $v2}}]}, order: {created_at: DESC}, limit: 10, offset: 20) { _docID title } }`
	if query != want {
		t.Errorf("Build() query =\n%s\nwant\n%s", query, want)
	}
	if vars["v0"] != "u1" || vars["v1"] != "writing" || vars["v2"] != "%haiku%" {
		t.Errorf("Build() vars = %v", vars)
	}
}

func TestQueryBuilder_NoFilters(t *testing.T) {
	query, vars := NewQuery("Tag").Fields("name").OrderBy("name", ASC).Build()
	if query != `{ Tag(order: {name: ASC}) { name } }` {
		t.Errorf("Build() = %s", query)
	}
	if len(vars) != 0 {
		t.Errorf("vars = %v, want none", vars)
	}
}

func TestQueryBuilder_EmptySearchIgnored(t *testing.T) {
	query, _ := NewQuery("Prompt").Search("", "title").Build()
	if strings.Contains(query, "_or") {
		t.Errorf("empty search should add no filter: %s", query)
	}
}

func TestQueryBuilder_FilterTypes(t *testing.T) {
	query, vars := NewQuery("PromptVersion").
		Filter("version", 2).
		FilterIn("prompt_id", []string{"a", "b"}).
		Build()
	if !strings.Contains(query, "$v0: Int") || !strings.Contains(query, "$v1: [String!]") {
		t.Errorf("Build() = %s", query)
	}
	if ids, ok := vars["v1"].([]string); !ok || len(ids) != 2 {
		t.Errorf("vars = %v", vars)
	}
}
