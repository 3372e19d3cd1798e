// Package textfilter cleans narration before it reaches the player.
package textfilter

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mild replacements keep the village's tone family friendly.
var replacements = map[string]string{
	"fuck":         "fudge",
	"motherfucker": "mother-trucker",
	"shit":         "shoot",
	"bullshit":     "baloney",
	"damn":         "dang",
	"goddamn":      "gosh-dang",
	"hell":         "heck",
	"ass":          "butt",
	"asshole":      "jerk",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"dick":         "jerk",
	"prick":        "jerk",
	"whore":        "[censored]",
	"slut":         "[censored]",
	"retard":       "[censored]",
}

var (
	fencePattern    = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	emphasisPattern = regexp.MustCompile(`\*{1,2}([^*\n]+)\*{1,2}`)
	spacePattern    = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Sanitizer tidies oracle narration: it drops markdown decoration, collapses
// whitespace and optionally softens profanity.
type Sanitizer struct {
	profanity *regexp.Regexp
}

// New creates a sanitizer. With filterProfanity false only markup is cleaned.
func New(filterProfanity bool) *Sanitizer {
	s := &Sanitizer{}
	if filterProfanity {
		words := make([]string, 0, len(replacements))
		for w := range replacements {
			words = append(words, regexp.QuoteMeta(w))
		}
		// Longest first so "bullshit" wins over "shit".
		sort.Slice(words, func(i, j int) bool {
			if len(words[i]) != len(words[j]) {
				return len(words[i]) > len(words[j])
			}
			return words[i] < words[j]
		})
		s.profanity = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return s
}

// Clean returns text ready to show.
func (s *Sanitizer) Clean(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "$1")
	text = spacePattern.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if s.profanity != nil {
		text = s.profanity.ReplaceAllStringFunc(text, func(match string) string {
			return preserveCase(match, replacements[strings.ToLower(match)])
		})
	}
	return text
}

// ContainsProfanity reports whether Clean would soften anything.
func (s *Sanitizer) ContainsProfanity(text string) bool {
	return s.profanity != nil && s.profanity.MatchString(text)
}

// preserveCase applies the case pattern of the original word to the replacement
func preserveCase(original, replacement string) string {
	switch {
	case original == "":
		return replacement
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return strings.ToLower(replacement)
	}

	title := cases.Title(language.English)
	if title.String(strings.ToLower(original)) == original {
		return title.String(replacement)
	}

	orig := []rune(original)
	out := []rune(replacement)
	for i, r := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(r)
		} else {
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}
