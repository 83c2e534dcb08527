package rag

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const vectorDims = 1024

// Match is a retrieved document with its cosine similarity to the query
type Match struct {
	Document Document
	Score    float64
}

// Index is an in-process vector index over hashed term frequency vectors.
// Documents keep insertion order, which also breaks score ties.
type Index struct {
	mu      sync.RWMutex
	order   []string
	docs    map[string]Document
	vectors map[string][]float64
	gen     uint64 // bumped by every Upsert
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		docs:    make(map[string]Document),
		vectors: make(map[string][]float64),
	}
}

// Upsert adds doc or replaces the document with the same ID
func (ix *Index) Upsert(doc Document) {
	vec := embed(doc.Content)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.docs[doc.ID]; !exists {
		ix.order = append(ix.order, doc.ID)
	}
	ix.docs[doc.ID] = doc
	ix.vectors[doc.ID] = vec
	ix.gen++
}

// Generation changes whenever the indexed content changes
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.gen
}

// Count returns the number of indexed documents
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.order)
}

// Query returns the k documents most similar to text, best first
func (ix *Index) Query(text string, k int) []Match {
	if k <= 0 {
		return nil
	}
	q := embed(text)

	ix.mu.RLock()
	matches := make([]Match, 0, len(ix.order))
	for _, id := range ix.order {
		matches = append(matches, Match{Document: ix.docs[id], Score: dot(q, ix.vectors[id])})
	}
	ix.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// embed returns the L2-normalized hashed term frequency vector of text
func embed(text string) []float64 {
	vec := make([]float64, vectorDims)
	for _, tok := range tokenize(text) {
		if len(tok) < 2 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%vectorDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
