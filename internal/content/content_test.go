package content

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator() *Generator {
	return NewGenerator(rand.New(rand.NewPCG(1, 2)))
}

func TestEmbeddedTemplatesParse(t *testing.T) {
	tpl, err := ParseTemplates(templatesYAML)
	require.NoError(t, err)
	assert.Len(t, tpl.EmailDomains, 3)
	assert.NotEmpty(t, tpl.PostTitles)
	assert.NotEmpty(t, tpl.Replies)
}

func TestParseTemplatesRejectsEmptyList(t *testing.T) {
	_, err := ParseTemplates([]byte("post_titles: [a]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty template list")
}

func TestUsername(t *testing.T) {
	g := newTestGenerator()
	pattern := regexp.MustCompile(`^[a-z]+_[a-z]+_[a-z0-9]{4}$`)
	for range 20 {
		u := g.Username()
		assert.Regexp(t, pattern, u)
		assert.True(t, ValidUsername(u))
	}
}

func TestEmail(t *testing.T) {
	g := newTestGenerator()
	pattern := regexp.MustCompile(`^[a-z0-9]{6}@(example|test|demo)\.com$`)
	for range 20 {
		assert.Regexp(t, pattern, g.Email())
	}
}

func TestCommentSubstitutesTitle(t *testing.T) {
	tpl := &Templates{Comments: []string{"Wow, {title} sounds amazing!"}}
	g := NewGeneratorWithTemplates(tpl, nil)
	assert.Equal(t, "Wow, Free Cruise sounds amazing!", g.Comment("Free Cruise"))
}

func TestFallbackUsername(t *testing.T) {
	tests := []struct {
		purpose string
		want    string
	}{
		{"investment scam", "investment_scam_user"},
		{"  Romance-Bait!! ", "romance_bait_user"},
		{"???", "decoy_user"},
		{"", "decoy_user"},
	}
	for _, tt := range tests {
		t.Run(tt.purpose, func(t *testing.T) {
			got := FallbackUsername(tt.purpose)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidUsername(got))
		})
	}

	long := FallbackUsername(strings.Repeat("phishing ", 10))
	assert.LessOrEqual(t, len(long), MaxUsernameLen)
	assert.True(t, strings.HasSuffix(long, "_user"))
	assert.True(t, ValidUsername(long))
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("crypto.king_99"))
	assert.False(t, ValidUsername("ab"))
	assert.False(t, ValidUsername("has space"))
	assert.False(t, ValidUsername("emoji🙂user"))
	assert.False(t, ValidUsername(strings.Repeat("a", 31)))
}

func TestParsePost(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantTitle string
		wantBody  string
		wantOK    bool
	}{
		{"plain", "Double your BTC\nSend 1 get 2 back.", "Double your BTC", "Send 1 get 2 back.", true},
		{"heading", "\n# Free Cruise\n\nClaim it today.", "Free Cruise", "Claim it today.", true},
		{"labels", "Title: \"Work From Home\"\nContent: Earn $500 a day.", "Work From Home", "Earn $500 a day.", true},
		{"bold label", "**Title:** Lucky Winner\nYou won.", "Lucky Winner", "You won.", true},
		{"title only", "Just a title", "", "", false},
		{"empty", "  \n \n", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body, ok := ParsePost(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestHashtags(t *testing.T) {
	got := Hashtags("Win big #Crypto #giveaway and more #crypto")
	assert.Equal(t, []string{"crypto", "giveaway"}, got)
	assert.Empty(t, Hashtags("no tags here"))
}

func TestCleanAndFirstLine(t *testing.T) {
	assert.Equal(t, "hello there", Clean(`  "hello there" `))
	assert.Equal(t, "it's", Clean(`'it's'`))
	assert.Equal(t, "first", FirstLine("\n\n  \"first\"\nsecond"))
	assert.Equal(t, "", FirstLine("   \n"))
}

func TestDegenerate(t *testing.T) {
	assert.True(t, Degenerate(""))
	assert.True(t, Degenerate("  a "))
	assert.True(t, Degenerate("......"))
	assert.False(t, Degenerate("ok"))
	assert.False(t, Degenerate("Nice post!"))
}
