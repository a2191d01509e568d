// Package retriever loads the document corpus once and answers top-k
// lexical queries with BM25 plus a keyword boost.
package retriever

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	headerBoost = 3.0
	bodyBoost   = 1.0
)

// boostTerms are domain words worth matching even when lower-case.
var boostTerms = map[string]bool{
	"unopened":       true,
	"opened":         true,
	"perishable":     true,
	"non-perishable": true,
	"summer":         true,
	"winter":         true,
	"aov":            true,
	"revenue":        true,
	"margin":         true,
}

var (
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
	quotedRe      = regexp.MustCompile(`"([^"]+)"`)
)

// Result is a chunk scored against one query.
type Result struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retriever is immutable after New and safe for concurrent use.
type Retriever struct {
	chunks []Chunk
	lower  []string
	index  *bm25
}

// New loads every markdown file under dir. A missing or unreadable corpus
// yields an empty retriever, which answers every query with no results.
func New(dir string) *Retriever {
	r := &Retriever{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Docs directory not readable, retrieval disabled", "dir", dir, "error", err)
		return r
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable document", "file", entry.Name(), "error", err)
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		r.chunks = append(r.chunks, chunkDocument(name, string(data))...)
	}

	r.build()
	slog.Info("Loaded document corpus", "dir", dir, "chunks", len(r.chunks))
	return r
}

// FromChunks builds a retriever over chunks already in memory.
func FromChunks(chunks []Chunk) *Retriever {
	r := &Retriever{chunks: append([]Chunk(nil), chunks...)}
	r.build()
	return r
}

func (r *Retriever) build() {
	if len(r.chunks) == 0 {
		return
	}
	corpus := make([][]string, len(r.chunks))
	r.lower = make([]string, len(r.chunks))
	for i, c := range r.chunks {
		r.lower[i] = strings.ToLower(c.Content)
		corpus[i] = tokenize(c.Content)
	}
	r.index = newBM25(corpus)
}

// Chunks returns a copy of the indexed chunks in load order.
func (r *Retriever) Chunks() []Chunk {
	return append([]Chunk(nil), r.chunks...)
}

// Retrieve returns at most k chunks with a positive hybrid score, best first.
// Ties keep corpus order.
func (r *Retriever) Retrieve(query string, k int) []Result {
	if r.index == nil || k <= 0 {
		return []Result{}
	}

	scores := r.index.scores(tokenize(query))
	keywords := Keywords(query)
	for i := range scores {
		scores[i] += r.boost(i, keywords)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	results := make([]Result, 0, k)
	for _, i := range order {
		if len(results) == k || scores[i] <= 0 {
			break
		}
		results = append(results, Result{
			ID:      r.chunks[i].ID,
			Content: r.chunks[i].Content,
			Score:   scores[i],
		})
	}
	return results
}

func (r *Retriever) boost(i int, keywords []string) float64 {
	doc := r.lower[i]
	total := 0.0
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if !strings.Contains(doc, kw) {
			continue
		}
		// "# kw" also matches "## kw"
		if strings.Contains(doc, "# "+kw) {
			total += headerBoost
		} else {
			total += bodyBoost
		}
	}
	return total
}

// Keywords pulls boost terms out of the raw query: capitalized words, quoted
// phrases and domain vocabulary, in that order. Duplicates are kept and
// count once each.
func Keywords(query string) []string {
	var keywords []string
	keywords = append(keywords, capitalizedRe.FindAllString(query, -1)...)
	for _, m := range quotedRe.FindAllStringSubmatch(query, -1) {
		keywords = append(keywords, m[1])
	}
	for _, tok := range tokenize(query) {
		if boostTerms[tok] {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func (r Result) String() string {
	return fmt.Sprintf("[%s %.3f]", r.ID, r.Score)
}
