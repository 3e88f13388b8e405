// Package tokenizer provides token-count estimation for prompt and
// context budgeting. It prefers a real tiktoken encoding and degrades
// to a character-ratio estimate when the encoding data is unavailable
// (offline deployments).
package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates the token count of a text. Counting never fails:
// implementations degrade to an estimate rather than returning errors.
type Counter interface {
	Count(text string) int
	Name() string
}

// NewCounter returns a Counter backed by the named tiktoken encoding.
// The encoding is initialized lazily on first use; if initialization
// fails the counter silently falls back to the character estimator.
func NewCounter(encoding string) Counter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &tiktokenCounter{encoding: encoding}
}

type tiktokenCounter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (c *tiktokenCounter) init() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			return
		}
		c.enc = enc
	})
}

func (c *tiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.init()
	if c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *tiktokenCounter) Name() string {
	c.init()
	if c.enc == nil {
		return "estimator"
	}
	return "tiktoken[" + c.encoding + "]"
}

// Estimate approximates a token count from character classes: CJK runs
// about 1.5 characters per token, everything else about 4.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}
