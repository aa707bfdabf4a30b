// Package splitter turns page text into bounded-size passages.
package splitter

import (
	"fmt"
	"strings"

	"github.com/docchat-cli/docchat/internal/core/domain"
)

// DefaultMaxWords is the default passage size budget in words.
const DefaultMaxWords = 200

// Split produces ordered, non-overlapping passages from page text, each at
// most maxWords words. The input is expected to contain single-line
// paragraphs separated by blank lines.
//
// Paragraph boundaries are the preferred split points: consecutive short
// paragraphs are packed into one passage until the budget is reached. A
// paragraph longer than the budget is split word-wise without paragraph
// awareness. Splitting is deterministic and produces no empty passages.
func Split(text string, maxWords int) ([]string, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidChunkSize, maxWords)
	}

	paragraphs := parseParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, nil
	}

	var passages []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) > 0 {
			passages = append(passages, strings.Join(current, " "))
			current = nil
			currentWords = 0
		}
	}

	for _, para := range paragraphs {
		words := strings.Fields(para)

		if len(words) > maxWords {
			// Oversized paragraph: emit what we have, then split the
			// paragraph itself into budget-sized pieces.
			flush()
			for start := 0; start < len(words); start += maxWords {
				end := start + maxWords
				if end > len(words) {
					end = len(words)
				}
				passages = append(passages, strings.Join(words[start:end], " "))
			}
			continue
		}

		if currentWords+len(words) > maxWords {
			flush()
		}
		current = append(current, para)
		currentWords += len(words)
	}
	flush()

	return passages, nil
}

// parseParagraphs reduces raw page text to its non-empty paragraphs.
// Paragraphs are separated by blank lines; line breaks within a paragraph
// collapse to single spaces.
func parseParagraphs(text string) []string {
	var paragraphs []string
	var lines []string

	emit := func() {
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, " "))
			lines = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			emit()
			continue
		}
		lines = append(lines, line)
	}
	emit()

	return paragraphs
}
