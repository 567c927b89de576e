package processing

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestChunkerSplit(t *testing.T) {
	testCases := []struct {
		name string
		size int
		text string
		want []string
	}{
		{
			name: "blank document",
			size: 10,
			text: " \n\n\t",
			want: nil,
		},
		{
			name: "short document stays whole",
			size: 800,
			text: "I.1.1. Âmes errantes.\r\n\r\nI.1.2. Esprits liés.",
			want: []string{"I.1.1. Âmes errantes.\n\nI.1.2. Esprits liés."},
		},
		{
			name: "paragraphs are packed greedily",
			size: 10,
			text: "aaaa\n\nbbbb\n\ncccc",
			want: []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name: "long paragraph splits on sentences",
			size: 20,
			text: "Première phrase. Deuxième phrase.",
			want: []string{"Première phrase.", "Deuxième phrase."},
		},
		{
			name: "oversized sentence is cut on runes",
			size: 5,
			text: "abcdefghijkl",
			want: []string{"abcde", "fghij", "kl"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NewChunker(tc.size).Split(tc.text))
		})
	}
}

func TestChunkerRespectsSize(t *testing.T) {
	text := strings.Repeat("Les ombres noires sont produites par les esprits vengeurs. ", 40) +
		"\n\n" + strings.Repeat("é", 130)

	c := NewChunker(64)
	chunks := c.Split(text)
	assert.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 64)
		assert.NotEmpty(t, strings.TrimSpace(ch))
	}
}

func TestNewChunkerDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewChunker(0).size)
	assert.Equal(t, DefaultChunkSize, NewChunker(-3).size)
}
