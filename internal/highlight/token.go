package highlight

import "unicode/utf8"

// Token is a run of non-whitespace or a run of whitespace taken from a text.
type Token struct {
	Text string `json:"text"`
}

// Tokenize splits text into words and the whitespace runs between them.
//
// The result always alternates word, whitespace, word, ... and starts and ends
// with a word slot. A text that begins or ends with whitespace therefore has an
// empty leading or trailing word token. An empty text has no tokens.
func Tokenize(text string) []Token {
	if text == "" {
		return nil
	}

	tokens := make([]Token, 0, 8)
	wordStart := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isSpace(r) {
			i += size
			continue
		}

		spaceStart := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !isSpace(r) {
				break
			}
			i += size
		}
		tokens = append(tokens,
			Token{Text: text[wordStart:spaceStart]},
			Token{Text: text[spaceStart:i]},
		)
		wordStart = i
	}
	tokens = append(tokens, Token{Text: text[wordStart:]})
	return tokens
}

// IsWhitespace reports whether the token is a non-empty run of whitespace.
func (t Token) IsWhitespace() bool {
	if t.Text == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(t.Text)
	return isSpace(r)
}

// isSpace matches the ECMAScript \s class: ASCII whitespace, the Unicode space
// separators, line and paragraph separators, and the byte order mark.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		0x00A0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}
