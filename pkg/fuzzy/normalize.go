// Package fuzzy normalizes track and artist names for catalog search.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(remaster|remastered|deluxe|extended|radio edit|live|mono|stereo)[^\)\]]*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalizer prepares free-text track identities for re-resolution against
// the catalog search endpoint. Feature credits, edition suffixes, accents
// and punctuation are stripped so loosely spelled upstream suggestions
// still hit the right catalog records.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// SearchQuery builds the "artist title" search string for a suggestion.
// Returns the empty string when neither part survives normalization.
func (n *Normalizer) SearchQuery(artist, title string) string {
	a := n.NormalizeArtist(artist)
	t := n.NormalizeTitle(title)
	return strings.TrimSpace(a + " " + t)
}

// NormalizeArtist lowercases and strips accents and punctuation from an
// artist name.
func (n *Normalizer) NormalizeArtist(artist string) string {
	return n.basicNormalize(artist)
}

// NormalizeTitle additionally strips feature credits and edition suffixes
// from a track title.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")
	return n.basicNormalize(title)
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}
