package utils

import (
	"fmt"
	"strings"
)

// backtrackWindow is how far a chunk boundary may move backward to land
// on whitespace or outside a bold-marker pair
const backtrackWindow = 200

// ChunkMessage splits text into ordered segments of at most limit runes.
// Concatenating the segments yields the original text. Boundaries prefer
// a newline or space near the limit and avoid cutting inside a *bold*
// pair where a nearby cleaner cut exists.
func ChunkMessage(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := chunkBoundary(runes, limit)
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// chunkBoundary picks where to cut the next chunk out of runes
func chunkBoundary(runes []rune, limit int) int {
	cut := limit
	low := limit - backtrackWindow
	if low < 1 {
		low = 1
	}

	for i := limit - 1; i >= low; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := limit - 1; i >= low; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}

	// no whitespace nearby; at least avoid splitting a marker pair
	if countRune(runes[:cut], '*')%2 == 1 {
		for i := cut - 1; i >= low; i-- {
			if runes[i] == '*' {
				if i > 0 {
					return i
				}
				break
			}
		}
	}
	return cut
}

func countRune(runes []rune, r rune) int {
	n := 0
	for _, c := range runes {
		if c == r {
			n++
		}
	}
	return n
}

// SanitizeMarkdown rewrites analysis text into Telegram's legacy
// Markdown dialect: code fences are stripped and double-asterisk bold
// becomes single-asterisk. An unbalanced result is reported as an error
// so the caller can fall back to sending the raw text plain.
func SanitizeMarkdown(text string) (string, error) {
	sanitized := text

	// drop code fence markers, keep the fenced content
	sanitized = strings.ReplaceAll(sanitized, "```", "")

	// Telegram legacy Markdown uses single asterisks for bold
	sanitized = strings.ReplaceAll(sanitized, "**", "*")

	if strings.Count(sanitized, "*")%2 != 0 {
		return "", fmt.Errorf("unbalanced bold markers after sanitizing")
	}
	if strings.Count(sanitized, "_")%2 != 0 {
		return "", fmt.Errorf("unbalanced italic markers after sanitizing")
	}
	return sanitized, nil
}
