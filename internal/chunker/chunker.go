// Package chunker groups consecutive pages into prompt-sized chunks. Page
// boundaries are kept so every chunk can label its text with the physical
// page number a generator must cite.
package chunker

import (
	"strings"

	"github.com/dgallion1/citecheck/internal/pagetext"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap, in tokens, between the parts of an oversized page.
	MinPage      int // Pages estimated below this many tokens are skipped.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    3000,
		ChunkOverlap: 100,
		MinPage:      5,
	}
}

// Chunk is a run of consecutive pages sent to the generator together.
type Chunk struct {
	Index  int
	Pages  []pagetext.Page
	Tokens int
}

// PageStart returns the first page number in the chunk.
func (c Chunk) PageStart() int {
	if len(c.Pages) == 0 {
		return 0
	}
	return c.Pages[0].Number
}

// PageEnd returns the last page number in the chunk.
func (c Chunk) PageEnd() int {
	if len(c.Pages) == 0 {
		return 0
	}
	return c.Pages[len(c.Pages)-1].Number
}

// ChunkPages packs pages into chunks of roughly cfg.ChunkSize tokens. A
// page larger than the target is split on sentence boundaries into parts
// that all keep its page number.
func ChunkPages(pages []pagetext.Page, cfg Config) []Chunk {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.MinPage <= 0 {
		cfg.MinPage = 1
	}

	var chunks []Chunk
	var current Chunk
	flush := func() {
		if len(current.Pages) == 0 {
			return
		}
		current.Index = len(chunks)
		chunks = append(chunks, current)
		current = Chunk{}
	}

	for _, p := range pages {
		tokens := EstimateTokens(p.Text)
		if tokens < cfg.MinPage {
			continue
		}

		if tokens > cfg.ChunkSize {
			flush()
			for _, part := range splitBySentences(p.Text, cfg.ChunkSize, cfg.ChunkOverlap) {
				current.Pages = []pagetext.Page{{Number: p.Number, Text: part}}
				current.Tokens = EstimateTokens(part)
				flush()
			}
			continue
		}

		if current.Tokens+tokens > cfg.ChunkSize {
			flush()
		}
		current.Pages = append(current.Pages, p)
		current.Tokens += tokens
	}
	flush()

	return chunks
}

// splitBySentences breaks a large page into sentence-based parts.
func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// getOverlapText extracts the last N tokens worth of text for overlap.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}
