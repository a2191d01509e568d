package retriever

import (
	"maps"
	"math"
	"slices"
)

// BM25 parameters, Okapi defaults.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// bm25 is an Okapi BM25 index over pre-tokenized documents. Terms whose raw
// idf is negative (present in more than half the corpus) get a floor of
// epsilon times the mean idf, so common terms never subtract relevance.
type bm25 struct {
	docFreqs []map[string]int
	docLens  []int
	avgdl    float64
	idf      map[string]float64
}

func newBM25(corpus [][]string) *bm25 {
	idx := &bm25{
		docFreqs: make([]map[string]int, len(corpus)),
		docLens:  make([]int, len(corpus)),
		idf:      map[string]float64{},
	}

	df := map[string]int{}
	total := 0
	for i, doc := range corpus {
		freqs := map[string]int{}
		for _, tok := range doc {
			freqs[tok]++
		}
		idx.docFreqs[i] = freqs
		idx.docLens[i] = len(doc)
		total += len(doc)
		for tok := range freqs {
			df[tok]++
		}
	}
	if len(corpus) > 0 {
		idx.avgdl = float64(total) / float64(len(corpus))
	}

	n := float64(len(corpus))
	sum := 0.0
	var negative []string
	for _, tok := range slices.Sorted(maps.Keys(df)) {
		freq := df[tok]
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idx.idf[tok] = v
		sum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(df) > 0 {
		floor := bm25Epsilon * sum / float64(len(df))
		for _, tok := range negative {
			idx.idf[tok] = floor
		}
	}
	return idx
}

// scores returns one score per document, in corpus order.
func (b *bm25) scores(query []string) []float64 {
	out := make([]float64, len(b.docFreqs))
	if b.avgdl == 0 {
		return out
	}
	for _, q := range query {
		idf := b.idf[q]
		for i, freqs := range b.docFreqs {
			f := float64(freqs[q])
			if f == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(b.docLens[i])/b.avgdl
			out[i] += idf * (f * (bm25K1 + 1) / (f + bm25K1*norm))
		}
	}
	return out
}
