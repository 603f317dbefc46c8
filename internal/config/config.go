// Package config loads runtime configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM providers understood by llm.NewModel.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderNone      = "none"
)

// Store engines.
const (
	StoreSurrealDB = "surrealdb"
	StoreMemory    = "memory"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ServerPort string

	// Store engine
	Store string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Text oracle
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string
	LLMTimeout      time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Scheduler
	Workers      int
	MisfireGrace time.Duration
	PersistJobs  bool

	// Campaign timings
	PostJobs         int
	PostDelayMin     time.Duration
	PostDelayMax     time.Duration
	FriendInterval   time.Duration
	InteractInterval time.Duration
	AnalyzeInterval  time.Duration
	AcceptDelay      time.Duration

	// Detection
	LogWindow int

	// Conversational probe
	TypingCPS      int
	MaxTypingDelay time.Duration
}

// Load reads configuration from environment variables, after merging any
// .env file found in the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	return Config{
		ServerPort: getEnv("HONEYTRAP_SERVER_PORT", "8484"),
		Store:      strings.ToLower(getEnv("HONEYTRAP_STORE", StoreSurrealDB)),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "honeytrap"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "soney"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     strings.ToLower(getEnv("HONEYTRAP_LLM_PROVIDER", ProviderOllama)),
		LLMModel:        getEnv("HONEYTRAP_LLM_MODEL", "llama3:8b"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		LLMTimeout:      getEnvDuration("HONEYTRAP_LLM_TIMEOUT", 30*time.Second),

		LogFile:  getEnv("HONEYTRAP_LOG_FILE", "/tmp/honeytrap.log"),
		LogLevel: parseLogLevel(getEnv("HONEYTRAP_LOG_LEVEL", "INFO")),

		Workers:      getEnvInt("HONEYTRAP_WORKERS", 16),
		MisfireGrace: getEnvDuration("HONEYTRAP_MISFIRE_GRACE", 60*time.Second),
		PersistJobs:  getEnv("HONEYTRAP_PERSIST_JOBS", "true") == "true",

		PostJobs:         getEnvInt("HONEYTRAP_POST_JOBS", 5),
		PostDelayMin:     getEnvDuration("HONEYTRAP_POST_DELAY_MIN", time.Minute),
		PostDelayMax:     getEnvDuration("HONEYTRAP_POST_DELAY_MAX", 2*time.Minute),
		FriendInterval:   getEnvDuration("HONEYTRAP_FRIEND_INTERVAL", time.Minute),
		InteractInterval: getEnvDuration("HONEYTRAP_INTERACT_INTERVAL", 2*time.Minute),
		AnalyzeInterval:  getEnvDuration("HONEYTRAP_ANALYZE_INTERVAL", 3*time.Minute),
		AcceptDelay:      getEnvDuration("HONEYTRAP_ACCEPT_DELAY", 20*time.Second),

		LogWindow: getEnvInt("HONEYTRAP_LOG_WINDOW", 10000),

		TypingCPS:      getEnvInt("HONEYTRAP_TYPING_CPS", 40),
		MaxTypingDelay: getEnvDuration("HONEYTRAP_MAX_TYPING_DELAY", 30*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", val)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
