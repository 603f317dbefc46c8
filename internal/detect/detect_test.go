package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

var base = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

// spread returns n entries for user evenly spaced across span.
func spread(user string, start time.Time, n int, span time.Duration) []models.LogEntry {
	out := make([]models.LogEntry, n)
	step := span / time.Duration(n-1)
	for i := range out {
		out[i] = models.LogEntry{Username: user, Action: "Liked post X", Timestamp: start.Add(time.Duration(i) * step)}
	}
	return out
}

func TestFrequencyWindow(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.LogEntry
		flagged bool
	}{
		{"11 within 59s", spread("bot", base, 11, 59*time.Second), true},
		{"11 across 61s", spread("bot", base, 11, 61*time.Second), false},
		{"10 within 5s", spread("bot", base, 10, 5*time.Second), false},
		{"exactly 60s", spread("bot", base, 11, 60*time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := Frequency{}.Detect(tt.entries)
			if tt.flagged {
				require.Len(t, signals, 1)
				assert.Equal(t, "bot", signals[0].Username)
				assert.Equal(t, ReasonHighFrequency, signals[0].Reason)
			} else {
				assert.Empty(t, signals)
			}
		})
	}
}

func TestFrequencyUnsortedInput(t *testing.T) {
	entries := spread("bot", base, 11, 30*time.Second)
	entries[0], entries[10] = entries[10], entries[0]
	entries = append(entries, spread("human", base, 3, time.Second)...)

	signals := Frequency{}.Detect(entries)
	require.Len(t, signals, 1)
	assert.Equal(t, "bot", signals[0].Username)
}

func TestTimeOfDayAcrossDays(t *testing.T) {
	var entries []models.LogEntry
	for i := range 11 {
		// Same minute of the day on eleven consecutive days.
		entries = append(entries, models.LogEntry{
			Username:  "cron",
			Action:    "Liked post X",
			Timestamp: base.AddDate(0, 0, i).Add(time.Duration(i) * time.Second),
		})
	}

	assert.Empty(t, Frequency{}.Detect(entries))

	signals := TimeOfDay{}.Detect(entries)
	require.Len(t, signals, 1)
	assert.Equal(t, ReasonTimeOfDay, signals[0].Reason)
}

func TestContentAnalyzer(t *testing.T) {
	entries := []models.LogEntry{
		{Username: "spammer", Action: "Commented on post Hello: BUY NOW at my shop", Timestamp: base},
		{Username: "nice", Action: "Commented on post Hello: Buy something nice", Timestamp: base},
		{Username: "liker", Action: "Liked post Free stuff", Timestamp: base},
		{Username: "linker", Action: "commented on post X: see www.example.org", Timestamp: base},
	}

	signals := Content{}.Detect(entries)
	var users []string
	for _, s := range signals {
		assert.Equal(t, ReasonSpammyContent, s.Reason)
		users = append(users, s.Username)
	}
	assert.Equal(t, []string{"linker", "spammer"}, users)
}

func TestRunDeduplicates(t *testing.T) {
	entries := spread("bot", base, 11, 10*time.Second)

	signals := Run(entries, Default()...)
	require.Len(t, signals, 2)
	assert.Equal(t, ReasonHighFrequency, signals[0].Reason)
	assert.Equal(t, ReasonTimeOfDay, signals[1].Reason)

	again := Run(entries, Frequency{}, Frequency{})
	assert.Len(t, again, 1)
}

func TestIsSpammy(t *testing.T) {
	assert.True(t, IsSpammy("Click HERE now"))
	assert.True(t, IsSpammy("wow!!!"))
	assert.False(t, IsSpammy("Great photo"))
}

type stubGenerator struct {
	reply string
	err   error
}

func (s stubGenerator) Generate(context.Context, string, []models.Turn) (string, error) {
	return s.reply, s.err
}

func TestCommentScreen(t *testing.T) {
	ctx := context.Background()

	ok, err := NewCommentScreen(stubGenerator{reply: "Yes, this looks like a scam."}).Suspicious(ctx, "Title", "Body", "buy crypto")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewCommentScreen(stubGenerator{reply: "No."}).Suspicious(ctx, "Title", "Body", "lovely")
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("timeout")
	_, err = NewCommentScreen(stubGenerator{err: boom}).Suspicious(ctx, "Title", "Body", "x")
	assert.ErrorIs(t, err, boom)
}

func TestParseYesNo(t *testing.T) {
	assert.True(t, ParseYesNo("yes"))
	assert.True(t, ParseYesNo("  **Yes** it is"))
	assert.False(t, ParseYesNo("no, yes"))
	assert.False(t, ParseYesNo(""))
}
