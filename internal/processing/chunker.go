package processing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunker splits documents into passages of at most size runes. Paragraph
// boundaries are preferred, then sentence boundaries; a single sentence longer
// than size is cut at rune boundaries.
type Chunker struct {
	size int
}

// NewChunker creates a chunker; a non-positive size falls back to DefaultChunkSize.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size}
}

type unit struct {
	text string
	sep  string // separator placed before this unit when it joins a chunk
}

// Split returns the chunks of text in document order.
func (c *Chunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var units []unit
	for _, para := range splitParagraphs(text) {
		if utf8.RuneCountInString(para) <= c.size {
			units = append(units, unit{text: para, sep: "\n\n"})
			continue
		}
		for i, sentence := range splitSentences(para) {
			sep := " "
			if i == 0 {
				sep = "\n\n"
			}
			for _, piece := range hardSplit(sentence, c.size) {
				units = append(units, unit{text: piece, sep: sep})
				sep = ""
			}
		}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	for _, u := range units {
		n := utf8.RuneCountInString(u.text)
		sepLen := utf8.RuneCountInString(u.sep)
		if curLen > 0 && curLen+sepLen+n > c.size {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteString(u.sep)
			curLen += sepLen
		}
		cur.WriteString(u.text)
		curLen += n
	}
	if curLen > 0 {
		chunks = append(chunks, strings.TrimSpace(cur.String()))
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences breaks after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func hardSplit(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	var out []string
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
