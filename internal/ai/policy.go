package ai

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Embedder is the embedding capability the retriever ranks snippets with.
type Embedder interface {
	Embed(model string, inputs []string) ([][]float64, error)
}

// PolicyRetriever looks up reply-policy snippets relevant to a query. It is a
// best-effort collaborator: every failure path returns an empty result so
// drafting proceeds without policy context.
type PolicyRetriever struct {
	embedder Embedder
	dir      string
	model    string
	topK     int
}

// NewPolicyRetriever creates a retriever over plain-text policy files in dir.
func NewPolicyRetriever(embedder Embedder, dir, model string, topK int) *PolicyRetriever {
	if topK <= 0 {
		topK = 3
	}
	return &PolicyRetriever{embedder: embedder, dir: dir, model: model, topK: topK}
}

// Retrieve returns up to topK policy snippets ranked by similarity to the
// query, or nil when the directory is empty or any step fails.
func (r *PolicyRetriever) Retrieve(query string) []string {
	snippets := r.loadSnippets()
	if len(snippets) == 0 {
		return nil
	}

	inputs := append([]string{query}, snippets...)
	vectors, err := r.embedder.Embed(r.model, inputs)
	if err != nil || len(vectors) != len(inputs) {
		return nil
	}

	queryVec := vectors[0]
	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, len(snippets))
	for i, snippet := range snippets {
		ranked[i] = scored{text: snippet, score: cosineSimilarity(queryVec, vectors[i+1])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := r.topK
	if top > len(ranked) {
		top = len(ranked)
	}
	result := make([]string, 0, top)
	for _, s := range ranked[:top] {
		result = append(result, s.text)
	}
	return result
}

// loadSnippets reads each policy file as one snippet.
func (r *PolicyRetriever) loadSnippets() []string {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil
	}

	var snippets []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".txt") && !strings.HasSuffix(name, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			snippets = append(snippets, text)
		}
	}
	return snippets
}

// cosineSimilarity computes the cosine of the angle between two vectors,
// zero when either has no magnitude or lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
