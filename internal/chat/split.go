// Package chat implements the conversation orchestrator: per-user turn
// handling, reply splitting, and delivery pacing.
package chat

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxPartLength is the character budget for one outbound message part.
// The model is asked to respect it via the system prompt, but the splitter
// enforces it regardless of model compliance.
const MaxPartLength = 500

// Delivery pacing bounds: a delay proportional to the next part's length,
// clamped to a human-plausible range, plus random jitter.
const (
	minPartDelay   = time.Second
	maxPartDelay   = 10 * time.Second
	delayPerRune   = 10 * time.Millisecond
	maxDelayJitter = 2 * time.Second
)

var blankLineRE = regexp.MustCompile(`\n\s*\n`)

// SplitReply divides an assistant reply into outbound message parts.
// Paragraphs (blank-line separated) become individual parts; paragraphs
// over MaxPartLength are packed greedily word by word, and unbroken runs
// longer than the budget are split on rune boundaries so every part fits.
func SplitReply(text string) []string {
	paragraphs := blankLineRE.Split(text, -1)

	var parts []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= MaxPartLength {
			parts = append(parts, p)
			continue
		}
		parts = append(parts, packWords(p)...)
	}
	if len(parts) == 0 && text != "" {
		// A non-empty reply always yields at least one part, even when it
		// carries no visible content.
		parts = []string{text}
	}
	return parts
}

// packWords greedily packs whitespace-delimited words into chunks of at
// most MaxPartLength runes, starting a new chunk whenever the next word
// would overflow. A single word longer than the budget is hard-split.
func packWords(paragraph string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(paragraph) {
		wordLen := utf8.RuneCountInString(word)

		if wordLen > MaxPartLength {
			flush()
			chunks = append(chunks, splitRunes(word, MaxPartLength)...)
			continue
		}

		needed := wordLen
		if currentLen > 0 {
			needed++ // joining space
		}
		if currentLen+needed > MaxPartLength {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	flush()

	return chunks
}

// splitRunes cuts s into pieces of at most size runes.
func splitRunes(s string, size int) []string {
	var pieces []string
	runes := []rune(s)
	for len(runes) > size {
		pieces = append(pieces, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

// PartDelay returns the artificial typing delay inserted before delivering
// the given part. The first part of a reply is delivered without delay;
// callers apply this only to subsequent parts.
func PartDelay(part string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(part)) * delayPerRune
	if d < minPartDelay {
		d = minPartDelay
	}
	if d > maxPartDelay {
		d = maxPartDelay
	}
	return d + time.Duration(rand.Int64N(int64(maxDelayJitter)))
}
