// Package chunker splits a Document's Pages into sentence-respecting,
// token-budgeted Chunks, with a contextual-enrichment prefix applied to
// each chunk's text before embedding.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/research-cli/internal/model"
)

// DefaultMaxTokens/DefaultOverlap are the default chunking targets.
const (
	DefaultMaxTokens = 512
	DefaultOverlap   = 50
)

// wordsPerToken approximates tokens as words/0.75, avoiding a dependency
// on a real byte-pair tokenizer for a number that only needs to be close.
const wordsPerToken = 0.75

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// Chunker groups a Document's Pages into token-budgeted, sentence-
// respecting Chunks with contextual-enrichment prefixes.
type Chunker struct {
	MaxTokens int
	Overlap   int
}

func New(maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{MaxTokens: maxTokens, Overlap: overlap}
}

type sentence struct {
	text    string
	page    int
	section string
}

// Chunk splits a Document's Pages into Chunks. Sentences never span a
// chunk boundary; paragraph breaks within a page are respected as natural
// grouping points but do not themselves force a new chunk.
func (c *Chunker) Chunk(doc model.Document, pages []model.Page) []model.Chunk {
	sentences := splitIntoSentences(pages)
	if len(sentences) == 0 {
		return nil
	}

	overlapWords := int(float64(c.Overlap) * wordsPerToken)

	var chunks []model.Chunk
	var current []sentence
	currentWords := 0
	chunkIndex := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(doc, current, chunkIndex))
		chunkIndex++
	}

	for _, s := range sentences {
		words := wordCount(s.text)
		tokenBudgetWords := float64(c.MaxTokens) * wordsPerToken
		if currentWords > 0 && float64(currentWords+words) > tokenBudgetWords {
			flush()
			current = overlapTail(current, overlapWords)
			currentWords = 0
			for _, o := range current {
				currentWords += wordCount(o.text)
			}
		}
		current = append(current, s)
		currentWords += words
	}
	flush()

	return chunks
}

func buildChunk(doc model.Document, sentences []sentence, index int) model.Chunk {
	var textBuilder strings.Builder
	startPage := sentences[0].page
	endPage := sentences[0].page
	section := sentences[0].section
	for i, s := range sentences {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		textBuilder.WriteString(s.text)
		if s.page < startPage {
			startPage = s.page
		}
		if s.page > endPage {
			endPage = s.page
		}
	}
	textRaw := textBuilder.String()
	tokenCount := int(float64(wordCount(textRaw)) / wordsPerToken)

	prefix := fmt.Sprintf("[Document: %s] [Section: %s] [Page: %d]\n\n", documentTitle(doc), section, startPage)

	return model.Chunk{
		ChunkID:      fmt.Sprintf("%s:%d", doc.DocumentID, index),
		DocumentID:   doc.DocumentID,
		ChunkIndex:   index,
		TextRaw:      textRaw,
		TextEnriched: prefix + textRaw,
		TokenCount:   tokenCount,
		StartPage:    startPage,
		EndPage:      endPage,
		Section:      section,
	}
}

func documentTitle(doc model.Document) string {
	if doc.Company != "" {
		return doc.Company
	}
	return doc.DocumentID
}

// overlapTail returns the trailing whole sentences of current whose
// combined word count is closest to (without exceeding, unless a single
// sentence alone exceeds it) overlapWords.
func overlapTail(current []sentence, overlapWords int) []sentence {
	if overlapWords <= 0 || len(current) == 0 {
		return nil
	}
	total := 0
	start := len(current)
	for start > 0 {
		w := wordCount(current[start-1].text)
		if total > 0 && total+w > overlapWords {
			break
		}
		total += w
		start--
	}
	return append([]sentence{}, current[start:]...)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// splitIntoSentences walks pages in order, splitting each page's text into
// paragraphs then sentences, tagging every sentence with its source page
// and section so chunk start_page/end_page/section can be derived later.
func splitIntoSentences(pages []model.Page) []sentence {
	var out []sentence
	for _, p := range pages {
		for _, para := range strings.Split(p.Text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			for _, s := range splitSentences(para) {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				out = append(out, sentence{text: s, page: p.PageNumber, section: p.Section})
			}
		}
	}
	return out
}

func splitSentences(para string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(para, -1) {
		out = append(out, para[last:loc[1]])
		last = loc[1]
	}
	if last < len(para) {
		out = append(out, para[last:])
	}
	return out
}
