package highlight

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Mode selects how tokens of the two texts are paired.
type Mode string

const (
	// ModePositional pairs tokens by index. It is the default.
	ModePositional Mode = "positional"
	// ModeAligned pairs tokens along a longest common subsequence.
	ModeAligned Mode = "aligned"
)

// ParseMode parses a mode name. The empty string selects ModePositional.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePositional:
		return ModePositional, nil
	case ModeAligned:
		return ModeAligned, nil
	default:
		return "", fmt.Errorf("unknown highlight mode %q (want %q or %q)", s, ModePositional, ModeAligned)
	}
}

// ComputeMode dispatches to Compute or ComputeAligned.
func ComputeMode(mode Mode, oldText, newText string) Result {
	if mode == ModeAligned {
		return ComputeAligned(oldText, newText)
	}
	return Compute(oldText, newText)
}

// ComputeModePtr is ComputeMode for optional inputs. A nil text is treated
// as empty.
func ComputeModePtr(mode Mode, oldText, newText *string) Result {
	if oldText == nil || newText == nil {
		return emptyResult()
	}
	return ComputeMode(mode, *oldText, *newText)
}

// ComputeAligned compares oldText against newText along a longest common
// subsequence of tokens, so an insertion does not shift later pairings.
// Degenerate inputs behave as in Compute.
func ComputeAligned(oldText, newText string) Result {
	if oldText == "" || newText == "" {
		return emptyResult()
	}

	oldTokens := Tokenize(oldText)
	newTokens := Tokenize(newText)

	m := newTokenMap()
	oldRunes := m.encode(oldTokens)
	newRunes := m.encode(newTokens)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(oldRunes, newRunes, false)

	res := Result{
		Old: make([]Span, 0, len(oldTokens)),
		New: make([]Span, 0, len(newTokens)),
	}
	for _, d := range diffs {
		for _, r := range d.Text {
			text := m.decode(r)
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				res.Old = append(res.Old, Span{Text: text, Tag: Unchanged})
				res.New = append(res.New, Span{Text: text, Tag: Unchanged})
			case diffmatchpatch.DiffDelete:
				res.Old = append(res.Old, Span{Text: text, Tag: Removed})
			case diffmatchpatch.DiffInsert:
				res.New = append(res.New, Span{Text: text, Tag: Added})
			}
		}
	}
	return res
}

// tokenMap assigns each distinct token a rune so the token sequences can be
// diffed as rune strings, in the way diffmatchpatch maps lines to runes.
type tokenMap struct {
	index  map[string]rune
	tokens []string
}

func newTokenMap() *tokenMap {
	return &tokenMap{index: make(map[string]rune)}
}

func (m *tokenMap) encode(tokens []Token) []rune {
	out := make([]rune, len(tokens))
	for i, t := range tokens {
		r, ok := m.index[t.Text]
		if !ok {
			r = indexToRune(len(m.tokens))
			m.index[t.Text] = r
			m.tokens = append(m.tokens, t.Text)
		}
		out[i] = r
	}
	return out
}

func (m *tokenMap) decode(r rune) string {
	return m.tokens[runeToIndex(r)]
}

// Diff text round-trips through string conversion, so surrogate code points
// are skipped.
const (
	surrogateMin = 0xD800
	surrogateLen = 0x800
)

func indexToRune(i int) rune {
	r := rune(i)
	if r >= surrogateMin {
		r += surrogateLen
	}
	return r
}

func runeToIndex(r rune) int {
	if r >= surrogateMin+surrogateLen {
		r -= surrogateLen
	}
	return int(r)
}
