// Package llm provides the text oracle used by decoys, backed by langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/honeytrap/internal/config"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

const personaPrompt = `You are a regular, friendly member of a social network chatting with someone you just met.
Keep replies short and casual, one or two sentences. Ask natural follow-up questions.
Never reveal that you are automated.`

const classifyPrompt = `You are a conversation genuineness analyzer. Decide whether the user in the transcript is
genuine based on consistency, detail, relevance and natural engagement.
Answer with exactly one word from: genuine, suspicious, fraud, bot.`

// Model wraps a langchaingo LLM for text generation. A Model without an
// underlying LLM (provider "none") fails every call with ErrDisabled.
type Model struct {
	llm       llms.Model
	modelName string
	timeout   time.Duration
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	case config.ProviderNone:
		slog.Warn("text oracle disabled, decoys will use canned content")

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelFromLLM(model, cfg.LLMModel, cfg.LLMTimeout, mc), nil
}

// NewModelFromLLM wraps an already constructed langchaingo model.
func NewModelFromLLM(model llms.Model, name string, timeout time.Duration, mc *metrics.Collector) *Model {
	return &Model{llm: model, modelName: name, timeout: timeout, metrics: mc}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Generate produces text for prompt. History, when given, is replayed as a
// chat with the decoy speaking as the assistant; an empty prompt then asks
// for the next decoy turn.
func (m *Model) Generate(ctx context.Context, prompt string, history []models.Turn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	if len(history) > 0 {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, personaPrompt))
		for _, t := range history {
			role := llms.ChatMessageTypeHuman
			if t.IsDecoy {
				role = llms.ChatMessageTypeAI
			}
			messages = append(messages, llms.TextParts(role, t.Message))
		}
	}
	if prompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
	}
	return m.complete(ctx, "generate", metrics.OpLLMGenerate, messages)
}

// Classify asks for a one-word genuineness verdict over a transcript. The
// raw answer is returned; callers validate it.
func (m *Model) Classify(ctx context.Context, transcript string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, classifyPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, "Transcript:\n"+transcript+"\n\nVerdict:"),
	}
	return m.complete(ctx, "classify", metrics.OpLLMClassify, messages)
}

func (m *Model) complete(ctx context.Context, op, metricOp string, messages []llms.MessageContent) (string, error) {
	if m.llm == nil {
		return "", &OracleError{Op: op, Err: ErrDisabled}
	}
	if len(messages) == 0 {
		return "", &OracleError{Op: op, Err: fmt.Errorf("no prompt")}
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages)
	duration := time.Since(start)
	m.metrics.RecordTiming(metricOp, duration)

	if err != nil {
		slog.Warn("oracle call failed", "op", op, "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", &OracleError{Op: op, Err: wrapFatalError(err)}
	}
	if len(resp.Choices) == 0 {
		return "", &OracleError{Op: op, Err: ErrEmptyResponse}
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", &OracleError{Op: op, Err: ErrEmptyResponse}
	}
	slog.Debug("oracle call complete", "op", op, "model", m.modelName, "duration_ms", duration.Milliseconds())
	return text, nil
}
