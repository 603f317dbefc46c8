package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/honeytrap/internal/config"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

// stubLLM records the last message list and answers with a fixed reply.
type stubLLM struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (s *stubLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestGenerateReplaysHistory(t *testing.T) {
	stub := &stubLLM{reply: "  Where are you from?  "}
	mc := metrics.NewCollector()
	m := NewModelFromLLM(stub, "stub", time.Second, mc)

	history := []models.Turn{
		{IsDecoy: true, Message: "Hi there"},
		{IsDecoy: false, Message: "hello"},
	}
	out, err := m.Generate(context.Background(), "", history)
	require.NoError(t, err)
	assert.Equal(t, "Where are you from?", out)

	require.Len(t, stub.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, stub.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, stub.messages[1].Role)
	assert.Equal(t, "Hi there", textOf(t, stub.messages[1]))
	assert.Equal(t, llms.ChatMessageTypeHuman, stub.messages[2].Role)
	assert.Equal(t, "hello", textOf(t, stub.messages[2]))

	assert.Equal(t, int64(1), mc.Snapshot().Operations[metrics.OpLLMGenerate].Count)
}

func TestGeneratePromptOnly(t *testing.T) {
	stub := &stubLLM{reply: "crypto_guru"}
	m := NewModelFromLLM(stub, "stub", 0, nil)

	out, err := m.Generate(context.Background(), "pick a username", nil)
	require.NoError(t, err)
	assert.Equal(t, "crypto_guru", out)
	require.Len(t, stub.messages, 1)
	assert.Equal(t, "pick a username", textOf(t, stub.messages[0]))
}

func TestClassifySendsTranscript(t *testing.T) {
	stub := &stubLLM{reply: "fraud"}
	m := NewModelFromLLM(stub, "stub", 0, nil)

	out, err := m.Classify(context.Background(), "user: send me gift cards")
	require.NoError(t, err)
	assert.Equal(t, "fraud", out)
	require.Len(t, stub.messages, 2)
	assert.Contains(t, textOf(t, stub.messages[1]), "send me gift cards")
}

func TestOracleErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		m := NewModelFromLLM(nil, "none", 0, nil)
		_, err := m.Generate(context.Background(), "hi", nil)
		var oe *OracleError
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, "generate", oe.Op)
		assert.ErrorIs(t, err, ErrDisabled)
	})

	t.Run("empty reply", func(t *testing.T) {
		m := NewModelFromLLM(&stubLLM{reply: "   "}, "stub", 0, nil)
		_, err := m.Classify(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("fatal provider error", func(t *testing.T) {
		m := NewModelFromLLM(&stubLLM{err: errors.New("HTTP 401: invalid api key")}, "stub", 0, nil)
		_, err := m.Generate(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, ErrFatalAPI)
	})
}

func TestNewModelNoneProvider(t *testing.T) {
	m, err := NewModel(context.Background(), config.Config{LLMProvider: config.ProviderNone}, nil)
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewModelRequiresKeys(t *testing.T) {
	_, err := NewModel(context.Background(), config.Config{LLMProvider: config.ProviderOpenAI}, nil)
	assert.Error(t, err)
	_, err = NewModel(context.Background(), config.Config{LLMProvider: config.ProviderAnthropic}, nil)
	assert.Error(t, err)
	_, err = NewModel(context.Background(), config.Config{LLMProvider: "mystery"}, nil)
	assert.Error(t, err)
}
