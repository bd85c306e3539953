package ble

import "unicode/utf8"

// ChunkText splits text into chunks that each fit within maxBytes.
// It prefers splitting at word boundaries (spaces) and never splits
// in the middle of a UTF-8 character. Returns nil for empty text and
// the whole text as one chunk when maxBytes <= 0.
func ChunkText(text string, maxBytes int) []string {
	if len(text) == 0 {
		return nil
	}
	if maxBytes <= 0 || len(text) <= maxBytes {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxBytes {
			chunks = append(chunks, text)
			break
		}

		// Walk back from maxBytes to the start of a rune.
		split := maxBytes
		for split > 0 && !utf8.RuneStart(text[split]) {
			split--
		}
		if split == 0 {
			// A single rune wider than maxBytes; emit it whole to make progress.
			_, size := utf8.DecodeRuneInString(text)
			chunks = append(chunks, text[:size])
			text = text[size:]
			continue
		}

		bestSpace := -1
		for i := split; i > 0; i-- {
			if text[i-1] == ' ' {
				bestSpace = i
				break
			}
		}

		if bestSpace > 0 {
			// The space stays in the first chunk so reassembly is exact.
			chunks = append(chunks, text[:bestSpace])
			text = text[bestSpace:]
		} else {
			chunks = append(chunks, text[:split])
			text = text[split:]
		}
	}
	return chunks
}
