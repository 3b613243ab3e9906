package conversation

import (
	"strings"
	"unicode/utf8"
)

// ChunkContinuedMarker is appended to every chunk except the last so the
// customer can tell a long message is still arriving. Stripping the marker
// from each chunk and concatenating reconstructs the original text exactly.
const ChunkContinuedMarker = " (continúa…)"

const defaultChunkLength = 1600

// ChunkMessage splits text into transport-sized chunks. Splitting prefers
// line boundaries, then word boundaries, and hard-splits by character count
// only when a single word exceeds the limit. Pure function: restartable and
// idempotent. Chunks must be dispatched strictly in order.
func ChunkMessage(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = defaultChunkLength
	}
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return []string{text}
	}

	budget := maxLength - utf8.RuneCountInString(ChunkContinuedMarker)
	if budget < 1 {
		budget = 1
	}

	var pieces []string
	for _, line := range splitAfterNewlines(text) {
		pieces = append(pieces, splitPiece(line, budget)...)
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if currentLen > 0 && currentLen+pieceLen > budget {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	for i := 0; i < len(chunks)-1; i++ {
		chunks[i] += ChunkContinuedMarker
	}
	return chunks
}

// splitAfterNewlines splits text into segments each ending with its
// newline, so concatenation is lossless.
func splitAfterNewlines(text string) []string {
	var out []string
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			if text != "" {
				out = append(out, text)
			}
			return out
		}
		out = append(out, text[:idx+1])
		text = text[idx+1:]
	}
}

// splitPiece breaks an oversized segment on word boundaries, keeping each
// word's trailing separator attached, and hard-splits single words that
// still exceed the budget.
func splitPiece(piece string, budget int) []string {
	if utf8.RuneCountInString(piece) <= budget {
		return []string{piece}
	}

	var words []string
	for {
		idx := strings.IndexByte(piece, ' ')
		if idx < 0 {
			if piece != "" {
				words = append(words, piece)
			}
			break
		}
		words = append(words, piece[:idx+1])
		piece = piece[idx+1:]
	}

	var out []string
	for _, word := range words {
		out = append(out, hardSplit(word, budget)...)
	}
	return out
}

func hardSplit(word string, budget int) []string {
	if utf8.RuneCountInString(word) <= budget {
		return []string{word}
	}
	var out []string
	runes := []rune(word)
	for len(runes) > budget {
		out = append(out, string(runes[:budget]))
		runes = runes[budget:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
