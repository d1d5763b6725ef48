package resource

import (
	"strings"
	"unicode/utf8"
)

// Preview summarises a text body for display: at most maxLines lines taken
// from the first maxBytes bytes.
type Preview struct {
	Lines      []string
	TotalLines int  // lines in the previewed window
	Truncated  bool // body is longer than maxBytes
	Binary     bool // body is not valid UTF-8
}

func NewPreview(body []byte, maxBytes, maxLines int) Preview {
	if !utf8.Valid(body) {
		return Preview{Binary: true}
	}

	window := body
	truncated := false
	if len(body) > maxBytes {
		window = body[:maxBytes]
		truncated = true
		// do not cut a rune in half
		for len(window) > 0 && !utf8.Valid(window) {
			window = window[:len(window)-1]
		}
	}

	lines := strings.Split(string(window), "\n")
	shown := lines
	if len(shown) > maxLines {
		shown = shown[:maxLines]
	}
	return Preview{
		Lines:      shown,
		TotalLines: len(lines),
		Truncated:  truncated,
	}
}
