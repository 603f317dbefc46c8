package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/honeytrap/internal/config"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

func TestLogAction(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()

	require.NoError(t, h.svc.LogAction(ctx, " alice ", "Liked post Hello"))
	assert.Equal(t, []string{"Liked post Hello"}, h.logActions(t, "alice"))

	var ve *models.ValidationError
	assert.ErrorAs(t, h.svc.LogAction(ctx, "", "x"), &ve)
	assert.ErrorAs(t, h.svc.LogAction(ctx, "alice", " "), &ve)
}

func TestGetStatistics(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()
	h.seedDecoys(t, "d1", "d2")
	require.NoError(t, h.svc.Schedule(ctx))
	require.NoError(t, h.svc.LogAction(ctx, "d1", "Created post: X"))
	_, err := h.svc.Detection.Record(ctx, "bad", "spammy content")
	require.NoError(t, err)

	stats, err := h.svc.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Decoys)
	assert.Equal(t, 1, stats.LogEntries)
	assert.Equal(t, 1, stats.Detections)
	assert.Equal(t, 5, stats.Scheduler.Jobs)
	assert.Equal(t, 0, stats.Scheduler.Persisted)
	require.NotNil(t, stats.Runtime)
	assert.Equal(t, int64(1), stats.Runtime.Detections["spammy content"])
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Config{
		PostJobs:       3,
		AcceptDelay:    7,
		PersistJobs:    true,
		TypingCPS:      12,
		LogWindow:      50,
		MaxTypingDelay: 9,
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 3, opts.PostJobs)
	assert.Equal(t, cfg.AcceptDelay, opts.AcceptDelay)
	assert.True(t, opts.PersistJobs)
	assert.Equal(t, 12, opts.TypingCPS)
	assert.Equal(t, 50, opts.LogWindow)
	assert.Nil(t, opts.Sleep)
}
