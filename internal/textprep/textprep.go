// Package textprep turns assistant replies into speakable, bounded chunks.
package textprep

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkChars is the soft upper bound for one synthesized utterance.
const DefaultChunkChars = 250

var (
	tableSepRE  = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	ruleRE      = regexp.MustCompile(`^(-{3,}|\*{3,}|_{3,})$`)
	headingRE   = regexp.MustCompile(`^#{1,6}\s*`)
	quoteRE     = regexp.MustCompile(`^>+\s*`)
	bulletRE    = regexp.MustCompile(`^([-*+•]|\d+[.)])\s+`)
	imageRE     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRE      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	strongRE    = regexp.MustCompile(`(\*\*|__|~~)`)
	emphStarRE  = regexp.MustCompile(`\*([^*\n]+)\*`)
	emphUnderRE = regexp.MustCompile(`(^|[\s(])_([^_\n]+)_`)
	spaceRE     = regexp.MustCompile(`\s+`)
	spacePunct  = regexp.MustCompile(`\s+([.!?,;:।॥])`)
)

// Sanitize strips markdown, tables and emoji and folds line structure into
// sentence punctuation so the text reads naturally aloud.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = cleanLine(line)
		if line == "" {
			continue
		}
		if !endsSentence(line) && !endsClause(line) {
			line += "."
		}
		parts = append(parts, line)
	}
	out := strings.Join(parts, " ")
	out = spaceRE.ReplaceAllString(out, " ")
	out = spacePunct.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || tableSepRE.MatchString(line) || ruleRE.MatchString(line) {
		return ""
	}
	if strings.HasPrefix(line, "|") || strings.Count(line, "|") >= 2 {
		line = tableRow(line)
	}
	line = headingRE.ReplaceAllString(line, "")
	line = quoteRE.ReplaceAllString(line, "")
	line = bulletRE.ReplaceAllString(line, "")
	line = imageRE.ReplaceAllString(line, "$1")
	line = linkRE.ReplaceAllString(line, "$1")
	line = strongRE.ReplaceAllString(line, "")
	line = emphStarRE.ReplaceAllString(line, "$1")
	line = emphUnderRE.ReplaceAllString(line, "$1$2")
	line = strings.NewReplacer("*", "", "`", "", "#", "").Replace(line)
	line = stripEmoji(line)
	return strings.TrimSpace(spaceRE.ReplaceAllString(line, " "))
}

func tableRow(line string) string {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	out := cells[:0]
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, ", ")
}

func stripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, s)
}

// isEmoji covers pictographs, dingbats, flags and presentation selectors.
// ZWJ/ZWNJ are kept: Indic scripts use them for conjunct forms.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r == 0xFE0E || r == 0xFE0F || r == 0x20E3:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	return false
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '।', '॥':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}

func endsSentence(s string) bool {
	s = strings.TrimRightFunc(s, isCloser)
	r, _ := utf8.DecodeLastRuneInString(s)
	return isTerminal(r)
}

func endsClause(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == ':' || r == ';' || r == ','
}

// Sentences splits text after sentence-final punctuation, keeping the
// punctuation, closing quotes and trailing whitespace with the sentence.
// Joining the result reproduces text exactly.
func Sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminal(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			// "3.5 kg" or "e.g." mid-token: not a boundary.
			i = j - 1
			continue
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		out = append(out, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// Chunk greedily packs sentences into chunks of at most max runes. A single
// sentence longer than max is emitted whole rather than cut mid-sentence.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = DefaultChunkChars
	}
	var (
		chunks  []string
		current string
		size    int
	)
	for _, s := range Sentences(text) {
		n := utf8.RuneCountInString(s)
		switch {
		case current == "":
			current, size = s, n
		case size+n <= max:
			current += s
			size += n
		default:
			chunks = append(chunks, current)
			current, size = s, n
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// Prepare sanitizes text and returns trimmed, non-empty chunks ready to speak.
func Prepare(text string, max int) []string {
	raw := Chunk(Sanitize(text), max)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
