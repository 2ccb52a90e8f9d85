package services

import (
	"context"
	"log"

	"embedding-gateway/internal/sparse"
	"embedding-gateway/internal/vectorstore"
)

// SeedSparseVectorizer fits keyword statistics from the previews already
// stored in the index. Best effort: an unreachable index or an empty
// collection just means hybrid indexing and search start degraded.
func SeedSparseVectorizer(ctx context.Context, store *vectorstore.Store, v *sparse.Vectorizer) {
	hits, err := store.ScrollAll(ctx, "", "")
	if err != nil {
		log.Printf("Sparse vectorizer not seeded, index scan failed: %v", err)
		return
	}

	corpus := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Payload.Preview != "" {
			corpus = append(corpus, h.Payload.Preview)
		}
	}
	if len(corpus) == 0 {
		log.Println("Sparse vectorizer not seeded, no indexed text yet")
		return
	}
	if err := v.Seed(corpus); err != nil {
		log.Printf("Sparse vectorizer seeding failed: %v", err)
		return
	}
	log.Printf("Sparse vectorizer seeded from %d stored previews", len(corpus))
}
