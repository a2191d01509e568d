package retriever

import (
	"fmt"
	"strings"
)

// Chunk is a header-delimited section of a corpus document.
type Chunk struct {
	ID      string
	Doc     string
	Index   int
	Content string
}

func chunkID(doc string, index int) string {
	return fmt.Sprintf("%s::chunk%d", doc, index)
}

func isHeader(line string) bool {
	return strings.HasPrefix(line, "#")
}

// SplitSections splits markdown content at header lines. A section runs from
// a header to the line before the next header; text before the first header
// forms its own section. Sections are trimmed and empty ones dropped.
func SplitSections(content string) []string {
	var sections []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if text := strings.TrimSpace(strings.Join(current, "\n")); text != "" {
			sections = append(sections, text)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if isHeader(line) {
			flush()
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	flush()

	return sections
}

func chunkDocument(doc, content string) []Chunk {
	sections := SplitSections(content)
	chunks := make([]Chunk, len(sections))
	for i, text := range sections {
		chunks[i] = Chunk{ID: chunkID(doc, i), Doc: doc, Index: i, Content: text}
	}
	return chunks
}
