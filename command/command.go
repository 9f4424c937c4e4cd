// Package command pattern-matches raw user text into a typed command before
// any language-model call is made. Cheap, deterministic classifications
// (back, images, summarize, section, navigation) are resolved here; only
// text nothing matches is handed to the language collaborator.
package command

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/webguide/textmatch"
)

// Kind identifies the command variant.
type Kind int

const (
	// KindUnknown carries the raw text for downstream interpretation.
	KindUnknown Kind = iota
	// KindBack pops the navigation history.
	KindBack
	// KindDescribeImages captions the current page's images.
	KindDescribeImages
	// KindSummarize asks for a page summary.
	KindSummarize
	// KindSection jumps to a named section; Target holds the name.
	KindSection
	// KindNavigation clicks a link or element; Target holds the reference.
	KindNavigation
)

// String returns the kind's wire name.
func (k Kind) String() string {
	switch k {
	case KindBack:
		return "back"
	case KindDescribeImages:
		return "describe_images"
	case KindSummarize:
		return "summarize"
	case KindSection:
		return "section"
	case KindNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// Command is one classified user input. Target is set for section and
// navigation commands; Raw always carries the original, non-normalized
// input so an unknown command can still be interpreted downstream.
type Command struct {
	Kind   Kind
	Target string
	Raw    string
}

// specialPhrases are checked first, by substring containment against the
// normalized input. Order matters: earlier entries take precedence.
var specialPhrases = []struct {
	kind    Kind
	phrases []string
}{
	{KindBack, []string{"go back", "previous page", "back", "return"}},
	{KindDescribeImages, []string{"describe image", "show image", "what is in the image"}},
	{KindSummarize, []string{"summarize", "summary", "can you summarize"}},
}

// sectionPatterns match "... section" phrasings. Evaluated in order against
// the normalized input; the first match wins and its capture group, trimmed,
// becomes the section name. Earlier patterns are more specific.
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:can you )?(?:go|show|navigate|take)(?: me)?(?: to)?(?: the)? ["']?(.+?)["']? section`),
	regexp.MustCompile(`(?:show|display|read|view|open)(?: the)? ["']?(.+?)["']? section`),
	regexp.MustCompile(`["']?(.+?)["']? section`),
}

// navigationPatterns match click/navigate phrasings. Anchored: the verb
// must lead the input. Order is significant and preserved exactly.
var navigationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:can you )?(?:go|navigate|take)(?: me)?(?: to)?(?: the)? ["']?(.+?)["']?$`),
	regexp.MustCompile(`^(?:show|display|open)(?: the)? ["']?(.+?)["']?$`),
	regexp.MustCompile(`^(?:click|select|choose)(?: on)?(?: the)? ["']?(.+?)["']?$`),
}

// Classify maps raw user text to a Command. Phrase sets are checked first,
// then the section table, then the navigation table; anything left is
// Unknown with the original text attached.
func Classify(input string) Command {
	normalized := textmatch.Normalize(input)

	for _, special := range specialPhrases {
		for _, phrase := range special.phrases {
			if strings.Contains(normalized, phrase) {
				return Command{Kind: special.kind, Raw: input}
			}
		}
	}

	for _, pat := range sectionPatterns {
		if m := pat.FindStringSubmatch(normalized); m != nil {
			return Command{Kind: KindSection, Target: strings.TrimSpace(m[1]), Raw: input}
		}
	}

	for _, pat := range navigationPatterns {
		if m := pat.FindStringSubmatch(normalized); m != nil {
			return Command{Kind: KindNavigation, Target: strings.TrimSpace(m[1]), Raw: input}
		}
	}

	return Command{Kind: KindUnknown, Raw: input}
}

// urlPattern finds a URL (or bare domain) anywhere in free text.
var urlPattern = regexp.MustCompile(`https?://\S+|(?:www\.)?[a-zA-Z0-9-]+\.[a-zA-Z]{2,}\S*`)

// ExtractURL returns the first URL-looking token in the input, if any.
// A bare domain counts: users paste "example.com" as often as full URLs.
func ExtractURL(input string) (string, bool) {
	m := urlPattern.FindString(input)
	return m, m != ""
}
