package highlight

// Tag classifies a span in a comparison result.
type Tag string

const (
	Unchanged Tag = "unchanged"
	Removed   Tag = "removed"
	Added     Tag = "added"
)

// Span is a token annotated with its comparison outcome.
type Span struct {
	Text string `json:"text"`
	Tag  Tag    `json:"tag"`
}

// Result holds the annotated old and new texts.
// Old carries only Unchanged and Removed spans; New only Unchanged and Added.
type Result struct {
	Old []Span `json:"old"`
	New []Span `json:"new"`
}

// Compute compares oldText against newText using positional alignment.
//
// If either text is empty there is nothing to compare against and both sides
// of the result are empty. Otherwise tokens are paired by index: equal pairs
// are unchanged on both sides, differing pairs are removed on the old side and
// added on the new side, and tokens past the end of the shorter text are
// removed or added on their own side.
func Compute(oldText, newText string) Result {
	if oldText == "" || newText == "" {
		return emptyResult()
	}

	oldTokens := Tokenize(oldText)
	newTokens := Tokenize(newText)

	res := Result{
		Old: make([]Span, 0, len(oldTokens)),
		New: make([]Span, 0, len(newTokens)),
	}

	i, j := 0, 0
	for i < len(oldTokens) || j < len(newTokens) {
		switch {
		case i >= len(oldTokens):
			res.New = append(res.New, Span{Text: newTokens[j].Text, Tag: Added})
			j++
		case j >= len(newTokens):
			res.Old = append(res.Old, Span{Text: oldTokens[i].Text, Tag: Removed})
			i++
		case oldTokens[i].Text == newTokens[j].Text:
			res.Old = append(res.Old, Span{Text: oldTokens[i].Text, Tag: Unchanged})
			res.New = append(res.New, Span{Text: newTokens[j].Text, Tag: Unchanged})
			i++
			j++
		default:
			res.Old = append(res.Old, Span{Text: oldTokens[i].Text, Tag: Removed})
			res.New = append(res.New, Span{Text: newTokens[j].Text, Tag: Added})
			i++
			j++
		}
	}

	return res
}

// ComputePtr is Compute for optional inputs. A nil text is treated as empty.
func ComputePtr(oldText, newText *string) Result {
	if oldText == nil || newText == nil {
		return emptyResult()
	}
	return Compute(*oldText, *newText)
}

// OldText reassembles the old side of the result.
func (r Result) OldText() string { return joinSpans(r.Old) }

// NewText reassembles the new side of the result.
func (r Result) NewText() string { return joinSpans(r.New) }

// Empty reports whether no comparison was made.
func (r Result) Empty() bool { return len(r.Old) == 0 && len(r.New) == 0 }

// Stats counts word tokens by outcome. Whitespace and empty tokens are not counted.
type Stats struct {
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Added     int `json:"added"`
}

// Stats summarizes the result. Unchanged words are counted once, from the new side.
func (r Result) Stats() Stats {
	var s Stats
	for _, sp := range r.Old {
		if sp.Tag == Removed && isWord(sp.Text) {
			s.Removed++
		}
	}
	for _, sp := range r.New {
		if !isWord(sp.Text) {
			continue
		}
		switch sp.Tag {
		case Added:
			s.Added++
		case Unchanged:
			s.Unchanged++
		}
	}
	return s
}

func isWord(text string) bool {
	return text != "" && !(Token{Text: text}).IsWhitespace()
}

func joinSpans(spans []Span) string {
	n := 0
	for _, sp := range spans {
		n += len(sp.Text)
	}
	buf := make([]byte, 0, n)
	for _, sp := range spans {
		buf = append(buf, sp.Text...)
	}
	return string(buf)
}

func emptyResult() Result {
	return Result{Old: []Span{}, New: []Span{}}
}
