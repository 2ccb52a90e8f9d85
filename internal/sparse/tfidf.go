// Package sparse implements the keyword-statistics vectorizer used for
// hybrid (dense+sparse) retrieval. Terms are feature-hashed into a fixed
// number of buckets so the sparse vector dimension never depends on the
// corpus, and the index collection schema stays stable across restarts.
package sparse

import (
	"errors"
	"log"
	"math"
	"regexp"
	"strings"
	"sync"

	"hash/fnv"
)

// Vectorizer computes hashed TF-IDF vectors of a fixed dimension. IDF
// weights are fitted once, from the corpus passed to Seed; after seeding the
// state is read-only and safe for concurrent use. Request handling must
// never trigger a re-fit.
type Vectorizer struct {
	mu           sync.RWMutex
	dim          int
	idf          []float64
	docCount     int
	seeded       bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewVectorizer creates an unseeded vectorizer producing vectors of the
// given dimension.
func NewVectorizer(dim int) *Vectorizer {
	if dim <= 0 {
		dim = 1024
	}
	return &Vectorizer{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Dimension returns the fixed dimensionality of produced vectors.
func (v *Vectorizer) Dimension() int { return v.dim }

// Seeded reports whether IDF weights have been fitted. Callers switch to
// dense-only behavior when this is false.
func (v *Vectorizer) Seeded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.seeded
}

// Seed fits bucket document frequencies from the corpus. It is called once
// at startup (seeded with the previews already stored in the index) and is
// the only write to vectorizer state.
func (v *Vectorizer) Seed(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus")
	}

	df := make([]int, v.dim)
	docs := 0
	for _, text := range corpus {
		tokens := v.tokenize(text)
		if len(tokens) == 0 {
			continue
		}
		docs++
		seen := make(map[uint32]struct{}, len(tokens))
		for _, tok := range tokens {
			b := v.bucket(tok)
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			df[b]++
		}
	}
	if docs == 0 {
		return errors.New("no tokens found in corpus")
	}

	// Smoothed IDF per bucket; buckets never observed get the maximum
	// weight so unseen terms still contribute.
	idf := make([]float64, v.dim)
	n := float64(docs)
	for i := range idf {
		idf[i] = math.Log((1+n)/(1+float64(df[i]))) + 1.0
	}

	v.mu.Lock()
	v.idf = idf
	v.docCount = docs
	v.seeded = true
	v.mu.Unlock()

	return nil
}

// Vectorize computes the hashed TF-IDF embedding for text, L2-normalized.
// A zero vector is a valid outcome for empty text or text with no usable
// tokens; it is logged but never an error. An unseeded vectorizer also
// yields the zero vector.
func (v *Vectorizer) Vectorize(text string) []float64 {
	vec := make([]float64, v.dim)

	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.seeded {
		return vec
	}

	tokens := v.tokenize(text)
	if len(tokens) == 0 {
		log.Printf("sparse: no usable tokens in text (len=%d), returning zero vector", len(text))
		return vec
	}

	tf := make(map[uint32]int, len(tokens))
	for _, tok := range tokens {
		tf[v.bucket(tok)]++
	}

	total := float64(len(tokens))
	for b, count := range tf {
		vec[b] = (float64(count) / total) * v.idf[b]
	}

	// L2 normalize
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func (v *Vectorizer) bucket(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32() % uint32(v.dim)
}

func (v *Vectorizer) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := v.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := v.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "than", "so", "such", "into", "about", "between",
		"through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very",
		"can", "will", "just", "not", "no", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
