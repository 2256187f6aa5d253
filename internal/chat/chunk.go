package chat

// MaxMessageLen is the platform's per-message length cap, in runes.
const MaxMessageLen = 4000

// Chunk splits text into pieces of at most max runes. Splits prefer the last
// newline at or before the limit; the newline at a split point is consumed.
// When no newline is in range the text is cut hard at the limit.
func Chunk(text string, max int) []string {
	if max <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > max {
		window := runes[:max+1]
		cut := lastNewline(window)
		if cut >= 0 {
			chunks = append(chunks, string(runes[:cut]))
			runes = runes[cut+1:]
		} else {
			chunks = append(chunks, string(runes[:max]))
			runes = runes[max:]
		}
	}
	chunks = append(chunks, string(runes))
	return chunks
}

func lastNewline(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return i
		}
	}
	return -1
}
