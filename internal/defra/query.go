package defra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// IDPattern matches DefraDB document IDs (bae-<uuid>) and simple identifiers.
// IDs are checked against it before interpolation into a query.
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrInvalidID is returned for IDs that are empty, oversized or unsafe.
var ErrInvalidID = errors.New("invalid ID")

// ValidateID checks if a string is safe to use as a document ID in GraphQL queries.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > 500 {
		return fmt.Errorf("%w: too long (%d characters)", ErrInvalidID, len(id))
	}
	if !IDPattern.MatchString(id) {
		return fmt.Errorf("%w: contains unsafe characters", ErrInvalidID)
	}
	return nil
}

// Direction is a sort direction for OrderBy.
type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// QueryBuilder constructs parameterized GraphQL queries.
// User-supplied values always travel as variables.
type QueryBuilder struct {
	collection string
	filters    []filterDef
	fields     []string
	order      string
	limit      int
	offset     int
	varIndex   int
}

// filterDef renders one entry of the filter object. clause is a format
// string with a single %s for the variable reference.
type filterDef struct {
	clause  string
	varName string
	varType string
	value   any
}

// NewQuery creates a new QueryBuilder for the given collection.
func NewQuery(collection string) *QueryBuilder {
	return &QueryBuilder{
		collection: collection,
		fields:     []string{"_docID"},
	}
}

func (q *QueryBuilder) add(clause, varType string, value any) *QueryBuilder {
	q.filters = append(q.filters, filterDef{
		clause:  clause,
		varName: q.nextVarName(),
		varType: varType,
		value:   value,
	})
	return q
}

// Filter adds an equality filter.
func (q *QueryBuilder) Filter(field string, value any) *QueryBuilder {
	return q.add(field+": {_eq: %s}", inferGraphQLType(value), value)
}

// FilterIn adds an _in filter for matching any of the values.
func (q *QueryBuilder) FilterIn(field string, values []string) *QueryBuilder {
	return q.add(field+": {_in: %s}", "[String!]", values)
}

// FilterAny matches documents whose array field contains value.
func (q *QueryBuilder) FilterAny(field string, value string) *QueryBuilder {
	return q.add(field+": {_any: {_eq: %s}}", "String", value)
}

// Search adds a case-insensitive substring match over any of fields.
func (q *QueryBuilder) Search(term string, fields ...string) *QueryBuilder {
	if term == "" || len(fields) == 0 {
		return q
	}
	alts := lo.Map(fields, func(f string, _ int) string {
		return "{" + f + ": {_ilike: %[1]s}}"
	})
	return q.add("_or: ["+strings.Join(alts, ", ")+"]", "String", "%"+term+"%")
}

// Fields sets the fields to return (replaces default of just _docID).
func (q *QueryBuilder) Fields(fields ...string) *QueryBuilder {
	q.fields = fields
	return q
}

// OrderBy sets the ordering.
func (q *QueryBuilder) OrderBy(field string, direction Direction) *QueryBuilder {
	q.order = fmt.Sprintf("{%s: %s}", field, direction)
	return q
}

// Limit sets the maximum number of results.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset sets the offset for pagination.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Build returns the query string and variables map.
func (q *QueryBuilder) Build() (string, map[string]any) {
	varDefs := make([]string, 0, len(q.filters))
	filterParts := make([]string, 0, len(q.filters))
	vars := make(map[string]any, len(q.filters))

	for _, f := range q.filters {
		varDefs = append(varDefs, fmt.Sprintf("$%s: %s", f.varName, f.varType))
		filterParts = append(filterParts, fmt.Sprintf(f.clause, "$"+f.varName))
		vars[f.varName] = f.value
	}

	var query strings.Builder
	if len(varDefs) > 0 {
		fmt.Fprintf(&query, "query(%s) ", strings.Join(varDefs, ", "))
	}

	query.WriteString("{ ")
	query.WriteString(q.collection)

	var args []string
	if len(filterParts) > 0 {
		args = append(args, fmt.Sprintf("filter: {%s}", strings.Join(filterParts, ", ")))
	}
	if q.order != "" {
		args = append(args, "order: "+q.order)
	}
	if q.limit > 0 {
		args = append(args, fmt.Sprintf("limit: %d", q.limit))
	}
	if q.offset > 0 {
		args = append(args, fmt.Sprintf("offset: %d", q.offset))
	}
	if len(args) > 0 {
		fmt.Fprintf(&query, "(%s)", strings.Join(args, ", "))
	}

	query.WriteString(" { ")
	query.WriteString(strings.Join(q.fields, " "))
	query.WriteString(" } }")

	return query.String(), vars
}

// Execute builds and executes the query on the given client.
func (q *QueryBuilder) Execute(ctx context.Context, client *Client) (*GQLResponse, error) {
	query, vars := q.Build()
	return client.Execute(ctx, query, vars)
}

// Docs executes the query and returns the collection's documents.
// GraphQL errors are returned as "graphql error: ..." errors.
func (q *QueryBuilder) Docs(ctx context.Context, client *Client) ([]map[string]any, error) {
	resp, err := q.Execute(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}
	return resp.Docs(q.collection)
}

func (q *QueryBuilder) nextVarName() string {
	name := fmt.Sprintf("v%d", q.varIndex)
	q.varIndex++
	return name
}

func inferGraphQLType(v any) string {
	switch v.(type) {
	case int, int32, int64:
		return "Int"
	case float32, float64:
		return "Float"
	case bool:
		return "Boolean"
	default:
		return "String"
	}
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
