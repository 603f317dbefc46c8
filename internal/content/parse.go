package content

import (
	"regexp"
	"strings"
)

var (
	hashtagRegex   = regexp.MustCompile(`#([A-Za-z0-9_]+)`)
	titlePrefixRgx = regexp.MustCompile(`(?i)^(#+\s*|title\s*:\s*|\*\*title:?\*\*\s*:?\s*)`)
	bodyPrefixRgx  = regexp.MustCompile(`(?i)^(content|body)\s*:\s*`)
)

// MaxTitleLen bounds generated post titles.
const MaxTitleLen = 120

// ParsePost splits oracle output into a title (first non-empty line, with
// markdown heading or "Title:" prefixes removed) and a body (the rest). ok is
// false when either part ends up empty.
func ParsePost(text string) (title, body string, ok bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return "", "", false
	}

	title = Clean(titlePrefixRgx.ReplaceAllString(strings.TrimSpace(lines[i]), ""))
	rest := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
	body = strings.TrimSpace(bodyPrefixRgx.ReplaceAllString(rest, ""))

	if title == "" || body == "" || len(title) > MaxTitleLen {
		return "", "", false
	}
	return title, body, true
}

// Hashtags returns the distinct #tags in text, lowercased, in order of
// first appearance.
func Hashtags(text string) []string {
	matches := hashtagRegex.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// Clean trims whitespace and wrapping quotes from a single line of oracle
// output.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '*' && last == '*') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}

// FirstLine returns the first non-empty cleaned line of text.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if c := Clean(line); c != "" {
			return c
		}
	}
	return ""
}

// Degenerate reports whether generated text is unusable: empty, too short
// to read as a sentence, or made of a single repeated character.
func Degenerate(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return true
	}
	return strings.Count(s, s[:1]) == len(s)
}
