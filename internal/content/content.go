// Package content generates fallback text for decoys: usernames, emails,
// posts, comments and chat lines. Everything here is local and never fails.
package content

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

//go:embed templates.yaml
var templatesYAML []byte

// Templates is the canned content catalogue.
type Templates struct {
	Username struct {
		Adjectives []string `yaml:"adjectives"`
		Nouns      []string `yaml:"nouns"`
	} `yaml:"username"`
	EmailDomains []string `yaml:"email_domains"`
	PostTitles   []string `yaml:"post_titles"`
	PostContents []string `yaml:"post_contents"`
	Comments     []string `yaml:"comments"`
	Openers      []string `yaml:"openers"`
	Replies      []string `yaml:"replies"`
}

// ParseTemplates decodes a YAML catalogue and checks every list is populated.
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	lists := map[string][]string{
		"username.adjectives": t.Username.Adjectives,
		"username.nouns":      t.Username.Nouns,
		"email_domains":       t.EmailDomains,
		"post_titles":         t.PostTitles,
		"post_contents":       t.PostContents,
		"comments":            t.Comments,
		"openers":             t.Openers,
		"replies":             t.Replies,
	}
	for name, l := range lists {
		if len(l) == 0 {
			return nil, &models.ValidationError{Field: name, Reason: "empty template list"}
		}
	}
	return &t, nil
}

// Generator draws from a template catalogue. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	t   *Templates
}

// NewGenerator returns a generator over the embedded catalogue. A nil rng
// uses a randomly seeded source.
func NewGenerator(rng *rand.Rand) *Generator {
	t, err := ParseTemplates(templatesYAML)
	if err != nil {
		panic(err)
	}
	return NewGeneratorWithTemplates(t, rng)
}

// NewGeneratorWithTemplates is NewGenerator over a custom catalogue.
func NewGeneratorWithTemplates(t *Templates, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng, t: t}
}

func (g *Generator) pick(list []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return list[g.rng.IntN(len(list))]
}

// IntN returns a pseudo-random int in [0, n).
func (g *Generator) IntN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns n characters from [a-z0-9].
func (g *Generator) RandomString(n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rng.IntN(len(alphabet))]
	}
	return string(b)
}

// Username returns an adjective_noun_xxxx handle.
func (g *Generator) Username() string {
	return fmt.Sprintf("%s_%s_%s",
		g.pick(g.t.Username.Adjectives), g.pick(g.t.Username.Nouns), g.RandomString(4))
}

// Email returns a throwaway address on one of the catalogue domains.
func (g *Generator) Email() string {
	return g.RandomString(6) + "@" + g.pick(g.t.EmailDomains)
}

// Post returns a canned title and body.
func (g *Generator) Post() (title, body string) {
	return g.pick(g.t.PostTitles), g.pick(g.t.PostContents)
}

// Comment returns a canned comment for a post title.
func (g *Generator) Comment(postTitle string) string {
	return strings.ReplaceAll(g.pick(g.t.Comments), "{title}", postTitle)
}

// Opener returns a canned first chat line.
func (g *Generator) Opener() string {
	return g.pick(g.t.Openers)
}

// Reply returns a canned chat reply.
func (g *Generator) Reply() string {
	return g.pick(g.t.Replies)
}

// FallbackUsername derives <slug>_user from a purpose.
func FallbackUsername(purpose string) string {
	slug := models.Slugify(purpose)
	if slug == "" {
		slug = "decoy"
	}
	name := slug + "_user"
	if len(name) > MaxUsernameLen {
		name = strings.TrimRight(slug[:MaxUsernameLen-len("_user")], "_") + "_user"
	}
	return name
}

// Username length bounds.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 30
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)

// ValidUsername reports whether s is an acceptable generated username.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}
