package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// ReasonSuspiciousComment is recorded when the oracle flags a comment left
// on a decoy's post.
const ReasonSuspiciousComment = "suspicious comment on honeytrap post"

// Generator is the slice of the text oracle the comment screen needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []models.Turn) (string, error)
}

// CommentScreen asks the oracle for a yes/no verdict on a single comment.
type CommentScreen struct {
	oracle Generator
}

// NewCommentScreen creates a screen backed by oracle.
func NewCommentScreen(oracle Generator) *CommentScreen {
	return &CommentScreen{oracle: oracle}
}

// Suspicious reports whether the oracle considers comment suspicious.
// Oracle failures are returned so the caller can decide; the verdict is
// false in that case.
func (s *CommentScreen) Suspicious(ctx context.Context, postTitle, postContent, comment string) (bool, error) {
	prompt := fmt.Sprintf(
		"A user commented %q on a post titled %q with content %q.\n"+
			"Look for promotional language, malicious links, off-topic replies, scam offers "+
			"or requests for personal information. Is this comment suspicious? Answer only yes or no.",
		comment, postTitle, postContent)

	answer, err := s.oracle.Generate(ctx, prompt, nil)
	if err != nil {
		return false, err
	}
	return ParseYesNo(answer), nil
}

// ParseYesNo reads a yes/no answer. Only a leading "yes" counts as yes.
func ParseYesNo(answer string) bool {
	fields := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	return len(fields) > 0 && fields[0] == "yes"
}
