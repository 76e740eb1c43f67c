// Package highlight compares two versions of a text word by word and annotates
// each token as unchanged, removed, or added so both versions can be rendered
// side by side.
//
// Texts are tokenized into alternating runs of non-whitespace and whitespace;
// whitespace runs are kept as tokens so the annotated output of each side
// concatenates back to its input byte for byte.
//
// The default alignment is positional: token i of the old text is paired with
// token i of the new text. It does not search for a longest common
// subsequence, so an insertion near the start of the new text shifts every
// later pairing. ComputeAligned offers a subsequence-based alignment for
// callers that explicitly ask for it.
package highlight
