package sparse

import (
	"math"
	"testing"
)

func TestVectorizeBeforeSeedReturnsZeroVector(t *testing.T) {
	v := NewVectorizer(64)
	vec := v.Vectorize("hello world")
	if len(vec) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(vec))
	}
	for i, x := range vec {
		if x != 0 {
			t.Fatalf("expected zero vector before seeding, got %f at %d", x, i)
		}
	}
	if v.Seeded() {
		t.Fatal("vectorizer should not report seeded")
	}
}

func TestSeedEmptyCorpus(t *testing.T) {
	v := NewVectorizer(64)
	if err := v.Seed(nil); err == nil {
		t.Fatal("expected error for empty corpus")
	}
	if err := v.Seed([]string{"", "   "}); err == nil {
		t.Fatal("expected error for corpus without tokens")
	}
}

func TestVectorizeIsNormalized(t *testing.T) {
	v := NewVectorizer(256)
	corpus := []string{
		"postgres replication and failover",
		"kubernetes ingress routing rules",
		"vector similarity search with embeddings",
		"streaming kafka consumers",
	}
	if err := v.Seed(corpus); err != nil {
		t.Fatalf("seed: %v", err)
	}

	vec := v.Vectorize("vector search embeddings")
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1.0) > 1e-9 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestVectorizeDeterministic(t *testing.T) {
	v := NewVectorizer(256)
	if err := v.Seed([]string{"alpha beta gamma", "beta delta", "gamma epsilon"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := v.Vectorize("alpha gamma")
	b := v.Vectorize("alpha gamma")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestSimilarTextsScoreHigherThanUnrelated(t *testing.T) {
	v := NewVectorizer(512)
	corpus := []string{
		"database index tuning",
		"database backup strategy",
		"cooking pasta recipes",
		"garden watering schedule",
	}
	if err := v.Seed(corpus); err != nil {
		t.Fatalf("seed: %v", err)
	}

	query := v.Vectorize("database index")
	related := v.Vectorize("database index tuning guide")
	unrelated := v.Vectorize("pasta recipes")

	simRelated := dot(query, related)
	simUnrelated := dot(query, unrelated)
	if simRelated <= simUnrelated {
		t.Fatalf("expected related similarity %f > unrelated %f", simRelated, simUnrelated)
	}
}

func TestStopwordsAndEmptyTextYieldZeroVector(t *testing.T) {
	v := NewVectorizer(128)
	if err := v.Seed([]string{"searchable content here", "more searchable text"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, text := range []string{"", "the and of", "12345 !!!"} {
		vec := v.Vectorize(text)
		for _, x := range vec {
			if x != 0 {
				t.Fatalf("expected zero vector for %q", text)
			}
		}
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
