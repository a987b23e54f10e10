package ingest

import (
	"regexp"
	"strings"

	"github.com/lecternhq/lectern/internal/config"
)

// Chunker splits lesson text into overlapping, sentence-aligned pieces.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = config.DefaultIngestChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = config.DefaultIngestChunkOverlap
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

var sentenceEnd = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// Chunk produces pieces of at most chunkSize characters, breaking on sentence
// boundaries where possible and carrying chunkOverlap characters of trailing
// context into the next piece.
func (c *Chunker) Chunk(text string) []string {
	text = normalizeWhitespace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		// A single sentence longer than the chunk size gets hard-split.
		if len(sentence) > c.chunkSize {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			for start := 0; start < len(sentence); start += c.chunkSize - c.chunkOverlap {
				end := start + c.chunkSize
				if end > len(sentence) {
					end = len(sentence)
				}
				chunks = append(chunks, strings.TrimSpace(sentence[start:end]))
				if end == len(sentence) {
					break
				}
			}
			continue
		}

		if current.Len()+len(sentence)+1 > c.chunkSize && current.Len() > 0 {
			chunk := strings.TrimSpace(current.String())
			chunks = append(chunks, chunk)
			current.Reset()
			if c.chunkOverlap > 0 && len(chunk) > c.chunkOverlap {
				current.WriteString(chunk[len(chunk)-c.chunkOverlap:])
				current.WriteString(" ")
			}
		}
		current.WriteString(sentence)
		current.WriteString(" ")
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, s)
	}

	return chunks
}

func splitSentences(text string) []string {
	matches := sentenceEnd.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sentences []string
	consumed := 0
	for _, m := range matches {
		sentences = append(sentences, strings.TrimSpace(m[1]))
		consumed += len(m[0])
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
