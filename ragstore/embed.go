package ragstore

import (
	"hash/fnv"
	"math"
	"strings"
)

// EmbedFunc turns text into a fixed-length vector. Real embedding models
// are an external collaborator outside this design (§1); DefaultEmbedder
// is a deterministic stand-in good enough to exercise similarity search
// end-to-end without a network call.
type EmbedFunc func(text string) []float64

const embedDims = 64

// DefaultEmbedder hashes each token into a fixed-width bucket vector and
// L2-normalizes it, giving a cheap, deterministic, network-free bag-of-words
// embedding. Nothing in the retrieved pack ships a real embedding client;
// wiring one in would reintroduce the LLM-provider dependency this package
// exists to stay independent of.
func DefaultEmbedder(text string) []float64 {
	vec := make([]float64, embedDims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%embedDims] += 1
	}
	return normalize(vec)
}

func normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}
