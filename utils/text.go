package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinKeywordLength is the shortest token kept by the keyword extractors.
const MinKeywordLength = 3

var stopWords = map[string]bool{
	// English
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "any": true, "can": true,
	"had": true, "her": true, "was": true, "one": true, "our": true,
	"out": true, "has": true, "his": true, "how": true, "its": true,
	"who": true, "did": true, "yes": true, "she": true, "him": true,
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"they": true, "will": true, "your": true, "what": true, "when": true,
	"where": true, "which": true, "their": true, "there": true, "into": true,
	"about": true, "been": true, "were": true, "than": true, "then": true,
	"them": true, "these": true, "those": true, "also": true, "more": true,
	// Polish
	"jest": true, "nie": true, "się": true, "jak": true, "dla": true,
	"oraz": true, "lub": true, "albo": true, "ale": true, "tak": true,
	"czy": true, "też": true, "już": true, "tylko": true, "jako": true,
	"przez": true, "przy": true, "pod": true, "nad": true, "bez": true,
	"tym": true, "tego": true, "temu": true, "ten": true,
	"który": true, "która": true, "które": true, "jego": true,
	"jej": true, "ich": true, "być": true, "może": true, "więc": true,
}

var urlExtensions = map[string]bool{
	"html": true, "htm": true, "php": true, "asp": true, "aspx": true,
	"jsp": true, "cgi": true, "shtml": true, "xhtml": true,
}

var urlSchemeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Normalize lower-cases text, trims every line and joins the non-empty
// lines with a single space. The result is the fingerprint basis, so it must
// stay deterministic: input is NFC-normalized first so that composed and
// decomposed diacritics compare equal.
func Normalize(text string) string {
	text = strings.ToLower(norm.NFC.String(text))
	lines := strings.Split(text, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// ExtractKeywords returns the distinct significant words of text, in order
// of first appearance, joined by spaces.
func ExtractKeywords(text string) string {
	return strings.Join(KeywordTokens(text), " ")
}

// KeywordTokens is ExtractKeywords without the final join.
func KeywordTokens(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, strings.ToLower(norm.NFC.String(text)))

	return filterTokens(strings.Fields(cleaned), func(word string) bool {
		return !stopWords[word]
	})
}

// ExtractKeywordsFromURL tokenizes a URL into keywords: the scheme, query
// string and fragment are dropped, the rest is split on "/", "." and "-",
// and common page extensions are removed.
func ExtractKeywordsFromURL(rawURL string) string {
	return strings.Join(URLKeywordTokens(rawURL), " ")
}

// URLKeywordTokens is ExtractKeywordsFromURL without the final join.
func URLKeywordTokens(rawURL string) []string {
	u := urlSchemeRegex.ReplaceAllString(strings.TrimSpace(rawURL), "")
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.ToLower(norm.NFC.String(u))

	words := strings.FieldsFunc(u, func(r rune) bool {
		return r == '/' || r == '.' || r == '-'
	})
	return filterTokens(words, func(word string) bool {
		return !urlExtensions[word]
	})
}

func filterTokens(words []string, keep func(string) bool) []string {
	seen := make(map[string]bool, len(words))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < MinKeywordLength || seen[word] || !keep(word) {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}
	return tokens
}
