package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogDir      string
	CORSOrigins []string

	// Completion provider
	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AnthropicKey  string
	GroqAPIKey    string
	OllamaURL     string
	DefaultModel  string
	LLMTimeout    time.Duration

	// Persistence
	PersistenceBackend string
	StatePath          string
	SQLitePath         string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOObject    string
	MinIOSecure    bool

	JWTSecret string
}

// LoadConfig reads .env (when present) and then the process environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Port:        getEnv("PORT", "8000"),
		LogDir:      getEnv("LOG_DIR", "./logs"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		AnthropicKey:  getEnv("ANTHROPIC_API_KEY", ""),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434/api"),
		DefaultModel:  getEnv("DEFAULT_MODEL", "gpt-4o-mini"),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		PersistenceBackend: strings.ToLower(getEnv("PERSISTENCE_BACKEND", "file")),
		StatePath:          getEnv("STATE_PATH", "./data/chat-state.json"),
		SQLitePath:         getEnv("SQLITE_PATH", "./data/chat.db"),

		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", ""),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "chatdesk"),
		MinIOObject:    getEnv("MINIO_OBJECT", "state/chat-state.json"),
		MinIOSecure:    getEnvBool("MINIO_SECURE", false),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

// APIKey returns the credential for the configured provider.
func (c Config) APIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicKey
	case "groq":
		return c.GroqAPIKey
	case "ollama":
		return "local"
	default:
		return c.OpenAIAPIKey
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
