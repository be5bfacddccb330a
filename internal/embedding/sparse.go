package embedding

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/research-cli/internal/model"
)

// Sparse encoding produces (indices[], values[]) using a BM25-style scheme
// over the corpus vocabulary built during indexing. No BM25/sparse-encoding
// library exists anywhere in the available pack, so this is a stdlib-only
// implementation.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Vocabulary is the corpus term index built once during indexing and
// reused by every Encoder.Encode call thereafter — this is what makes
// encoding deterministic across a model version: the same vocabulary
// always yields the same term→index assignment.
type Vocabulary struct {
	Term2Index map[string]uint32 `json:"term_to_index"`
	DocFreq     map[string]int    `json:"doc_freq"`
	TotalDocs   int               `json:"total_docs"`
	AvgDocLen   float64           `json:"avg_doc_len"`
}

// BuildVocabulary scans a corpus of chunk texts once, assigning each unique
// term a stable index in alphabetical order so the same corpus always
// produces the same Vocabulary regardless of input ordering.
func BuildVocabulary(texts []string) *Vocabulary {
	docFreq := map[string]int{}
	totalTokens := 0
	for _, text := range texts {
		tokens := tokenize(text)
		totalTokens += len(tokens)
		seen := map[string]bool{}
		for _, tok := range tokens {
			if !seen[tok] {
				docFreq[tok]++
				seen[tok] = true
			}
		}
	}

	terms := make([]string, 0, len(docFreq))
	for t := range docFreq {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	term2Index := make(map[string]uint32, len(terms))
	for i, t := range terms {
		term2Index[t] = uint32(i)
	}

	avgDocLen := 0.0
	if len(texts) > 0 {
		avgDocLen = float64(totalTokens) / float64(len(texts))
	}

	return &Vocabulary{
		Term2Index: term2Index,
		DocFreq:    docFreq,
		TotalDocs:  len(texts),
		AvgDocLen:  avgDocLen,
	}
}

// ToJSON/VocabularyFromJSON round-trip the vocabulary so it can be
// persisted alongside the extraction manifest and reloaded deterministically
// across process restarts rather than rebuilt per run.
func (v *Vocabulary) ToJSON() ([]byte, error)     { return json.Marshal(v) }
func VocabularyFromJSON(b []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Encoder is a BM25-style sparse encoder bound to one Vocabulary snapshot.
type Encoder struct {
	vocab *Vocabulary
}

func NewEncoder(vocab *Vocabulary) *Encoder {
	return &Encoder{vocab: vocab}
}

// Encode tokenizes text, computes BM25 term weights against the bound
// vocabulary, and returns them as a sorted-by-index SparseVector — the
// sort order is what lets vectorindex.sparseDot assume ascending indices.
func (e *Encoder) Encode(text string) model.SparseVector {
	tokens := tokenize(text)
	if len(tokens) == 0 || e.vocab == nil {
		return model.SparseVector{}
	}

	termFreq := map[string]int{}
	for _, tok := range tokens {
		termFreq[tok]++
	}
	docLen := float64(len(tokens))

	type weighted struct {
		index uint32
		value float32
	}
	var weights []weighted
	for term, tf := range termFreq {
		idx, ok := e.vocab.Term2Index[term]
		if !ok {
			continue // out-of-vocabulary terms are dropped, not hashed
		}
		idf := bm25IDF(e.vocab, term)
		denom := float64(tf) + bm25K1*(1-bm25B+bm25B*(docLen/avgDocLenOrOne(e.vocab)))
		score := idf * (float64(tf) * (bm25K1 + 1) / denom)
		if score > 0 {
			weights = append(weights, weighted{index: idx, value: float32(score)})
		}
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i].index < weights[j].index })

	out := model.SparseVector{Indices: make([]uint32, len(weights)), Values: make([]float32, len(weights))}
	for i, w := range weights {
		out.Indices[i] = w.index
		out.Values[i] = w.value
	}
	return out
}

func bm25IDF(v *Vocabulary, term string) float64 {
	df := v.DocFreq[term]
	n := v.TotalDocs
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

func avgDocLenOrOne(v *Vocabulary) float64 {
	if v.AvgDocLen <= 0 {
		return 1
	}
	return v.AvgDocLen
}
