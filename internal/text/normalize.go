// Package text provides ad-copy normalization applied before synthesis.
//
// Scripts are authored by researchers and occasionally carry smart quotes,
// stray whitespace, or abbreviations that TTS voices mispronounce; the
// normalizer smooths these out so every arm's audio is read the same way.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

// Typographic characters replaced before synthesis.
const (
	emDash       = "—"
	enDash       = "–"
	ellipsisChar = "…"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Normalizer prepares ad copy for the TTS voice.
type Normalizer struct {
	abbreviationReplacer *strings.Replacer
	quoteReplacer        *strings.Replacer
}

// NewNormalizer creates a normalizer with its replacers compiled upfront.
func NewNormalizer() *Normalizer {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Dr.", "Doctor",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Inc.", "Incorporated",
		"vs.", "versus",
	}

	quotes := []string{
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
		emDash, ", ",
		enDash, ", ",
		ellipsisChar, "...",
	}

	return &Normalizer{
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		quoteReplacer:        strings.NewReplacer(quotes...),
	}
}

// Normalize expands abbreviations, flattens typographic punctuation,
// collapses whitespace, and guarantees a terminal sentence ending.
func (n *Normalizer) Normalize(text string) string {
	text = n.abbreviationReplacer.Replace(text)
	text = n.quoteReplacer.Replace(text)
	text = stripControlRunes(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return ensureSentenceEnding(text)
}

// stripControlRunes removes control characters that confuse TTS engines,
// keeping ordinary printable text intact.
func stripControlRunes(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}

		return r
	}, text)
}

// ensureSentenceEnding appends a period when the copy does not already end
// with sentence punctuation. Voices pause more naturally on a closed
// sentence.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return text
	}

	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
