package mathrender

import "strings"

// Kind classifies a segment of scanned text.
type Kind int

const (
	Plain Kind = iota
	Inline
	Block
)

func (k Kind) String() string {
	switch k {
	case Inline:
		return "inline"
	case Block:
		return "block"
	default:
		return "plain"
	}
}

// Segment is a run of source text. For math segments Source keeps the
// delimiters and TeX holds what lies between them.
type Segment struct {
	Kind   Kind
	Source string
	TeX    string
}

// Segments splits text into plain and math runs. Block spans ($$…$$, lazy,
// may cross lines) are found first; inline spans ($…$, no embedded $) are
// then found in the plain text between them. Both require a non-empty body.
// A dollar preceded by an odd number of backslashes is literal.
// Concatenating every Source yields text again.
func Segments(text string) []Segment {
	var out []Segment
	for _, s := range splitBlocks(text) {
		if s.Kind == Block {
			out = append(out, s)
			continue
		}
		out = append(out, splitInline(s.Source)...)
	}
	return out
}

// HasMath reports whether text contains at least one math span.
func HasMath(text string) bool {
	if !strings.Contains(text, "$") {
		return false
	}
	for _, s := range Segments(text) {
		if s.Kind != Plain {
			return true
		}
	}
	return false
}

func splitBlocks(text string) []Segment {
	var out []Segment
	rest := text
	for {
		i := indexDelim(rest, "$$", 0)
		if i < 0 || i+3 > len(rest) {
			break
		}
		j := indexDelim(rest, "$$", i+3)
		if j < 0 {
			break
		}
		if i > 0 {
			out = append(out, Segment{Kind: Plain, Source: rest[:i]})
		}
		out = append(out, Segment{Kind: Block, Source: rest[i : j+2], TeX: rest[i+2 : j]})
		rest = rest[j+2:]
	}
	if rest != "" {
		out = append(out, Segment{Kind: Plain, Source: rest})
	}
	return out
}

func splitInline(text string) []Segment {
	var out []Segment
	rest := text
	for {
		i := indexDelim(rest, "$", 0)
		if i < 0 {
			break
		}
		j := indexDelim(rest, "$", i+1)
		if j < 0 {
			break
		}
		if j == i+1 {
			// Empty body: the second dollar may still open a span.
			out = appendPlain(out, rest[:i+1])
			rest = rest[i+1:]
			continue
		}
		if i > 0 {
			out = appendPlain(out, rest[:i])
		}
		out = append(out, Segment{Kind: Inline, Source: rest[i : j+1], TeX: rest[i+1 : j]})
		rest = rest[j+1:]
	}
	if rest != "" {
		out = appendPlain(out, rest)
	}
	return out
}

// appendPlain extends a trailing plain segment instead of starting a new one.
func appendPlain(out []Segment, s string) []Segment {
	if n := len(out); n > 0 && out[n-1].Kind == Plain {
		out[n-1].Source += s
		return out
	}
	return append(out, Segment{Kind: Plain, Source: s})
}

// indexDelim returns the index of the first unescaped delim in s at or after
// from, or -1.
func indexDelim(s, delim string, from int) int {
	for from <= len(s)-len(delim) {
		k := strings.Index(s[from:], delim)
		if k < 0 {
			return -1
		}
		i := from + k
		slashes := 0
		for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
			slashes++
		}
		if slashes%2 == 0 {
			return i
		}
		from = i + 1
	}
	return -1
}
