package processor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xhad/askdocs/internal/models"
)

// separator levels, most coherent first. Each level splits a piece right
// after any matching boundary so separators stay with the preceding text.
var levels = []func(string) []string{
	splitAfterString("\n\n"),
	splitAfterString("\n"),
	splitAfterRunes(func(r rune) bool { return strings.ContainsRune(".!?;。！？；", r) }),
	splitAfterRunes(unicode.IsSpace),
}

// Split breaks text into chunks of at most maxSize characters. Every chunk
// after the first begins with the last overlap characters of the chunk before
// it (or the whole previous chunk when that is shorter), so dropping those
// prefixes and concatenating reproduces text exactly.
func Split(text string, maxSize, overlap int) ([]string, error) {
	if maxSize < 1 {
		return nil, models.ConfigError("chunk size must be at least 1, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, models.ConfigError("chunk overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	if text == "" {
		return nil, nil
	}

	pieces := splitRecursive(text, maxSize, 0)
	return merge(pieces, maxSize, overlap), nil
}

func splitRecursive(text string, limit, level int) []string {
	if runeLen(text) <= limit {
		return []string{text}
	}
	if level >= len(levels) {
		return splitRunes(text, limit)
	}

	var out []string
	for _, part := range levels[level](text) {
		if runeLen(part) <= limit {
			out = append(out, part)
			continue
		}
		out = append(out, splitRecursive(part, limit, level+1)...)
	}
	return out
}

// merge packs pieces greedily into chunks of at most maxSize. A piece that
// does not fit behind the overlap prefix of a new chunk is split again
// against the room that is left.
func merge(pieces []string, maxSize, overlap int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
		fresh   = true
	)

	for len(pieces) > 0 {
		piece := pieces[0]
		pieces = pieces[1:]
		n := runeLen(piece)

		if size+n > maxSize {
			if !fresh {
				prev := current.String()
				chunks = append(chunks, prev)

				prefix := tail(prev, overlap)
				current.Reset()
				current.WriteString(prefix)
				size = runeLen(prefix)
				fresh = true
			}
			if size+n > maxSize {
				pieces = append(splitRecursive(piece, maxSize-size, 0), pieces...)
				continue
			}
		}
		current.WriteString(piece)
		size += n
		fresh = false
	}
	if !fresh {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// OverlapLen is the number of characters chunk i (i > 0) repeats from chunk
// i-1 when split with the given overlap.
func OverlapLen(prev string, overlap int) int {
	return runeLen(tail(prev, overlap))
}

func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := runeLen(s)
	if count <= n {
		return s
	}
	i := 0
	for skip := count - n; skip > 0; skip-- {
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
	}
	return s[i:]
}

func splitAfterString(sep string) func(string) []string {
	return func(text string) []string {
		parts := strings.SplitAfter(text, sep)
		if parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		return parts
	}
}

func splitAfterRunes(match func(rune) bool) func(string) []string {
	return func(text string) []string {
		var parts []string
		start := 0
		for i, r := range text {
			if match(r) {
				end := i + utf8.RuneLen(r)
				parts = append(parts, text[start:end])
				start = end
			}
		}
		if start < len(text) {
			parts = append(parts, text[start:])
		}
		return parts
	}
}

func splitRunes(text string, limit int) []string {
	var parts []string
	start, count := 0, 0
	for i := range text {
		if count == limit {
			parts = append(parts, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(parts, text[start:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
