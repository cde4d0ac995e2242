package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	AIProvider      string `json:"ai_provider"`
	AIAPIKey        string `json:"ai_api_key"`
	AIBaseURL       string `json:"ai_base_url"`
	LLMModel        string `json:"llm_model"`
	TriageModel     string `json:"triage_model"`
	DraftModel      string `json:"draft_model"`
	CalendarModel   string `json:"calendar_model"`
	EmbeddingModel  string `json:"embedding_model"`
	UserTZ          string `json:"user_tz"`
	CredentialsPath string `json:"credentials_path"`
	TokenPath       string `json:"token_path"`
	SlackWebhookURL string `json:"slack_webhook_url"`
	EnableSlack     bool   `json:"enable_slack"`
	PolicyDir       string `json:"policy_dir"`
	RAGTopK         int    `json:"rag_top_k"`
	MaxResults      int64  `json:"max_results"`
}

// Default configuration values
const (
	DefaultAIProvider      = "openai"
	DefaultLLMModel        = "gpt-4-turbo"
	DefaultTriageModel     = "gpt-4o-mini"
	DefaultDraftModel      = "gpt-4-turbo"
	DefaultCalendarModel   = "gpt-4o-mini"
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultUserTZ          = "Asia/Kathmandu"
	DefaultCredentialsPath = "credentials.json"
	DefaultTokenPath       = "token.json"
	DefaultPolicyDir       = "policies"
	DefaultRAGTopK         = 3
)

// Load loads configuration from a .env file, environment variables and an
// optional config.json file.
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{
		AIProvider:      DefaultAIProvider,
		LLMModel:        DefaultLLMModel,
		TriageModel:     DefaultTriageModel,
		DraftModel:      DefaultDraftModel,
		CalendarModel:   DefaultCalendarModel,
		EmbeddingModel:  DefaultEmbeddingModel,
		UserTZ:          DefaultUserTZ,
		CredentialsPath: DefaultCredentialsPath,
		TokenPath:       DefaultTokenPath,
		PolicyDir:       DefaultPolicyDir,
		RAGTopK:         DefaultRAGTopK,
		EnableSlack:     true,
	}

	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from an optional config.json file
func (c *Config) loadFromFile() error {
	data, err := os.ReadFile("config.json")
	if err != nil {
		// Config file is optional.
		return nil
	}
	return json.Unmarshal(data, c)
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("AI_PROVIDER"); val != "" {
		c.AIProvider = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.AIAPIKey = val
	}
	if val := os.Getenv("AI_API_KEY"); val != "" {
		c.AIAPIKey = val
	}
	if val := os.Getenv("AI_BASE_URL"); val != "" {
		c.AIBaseURL = val
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("TRIAGE_MODEL"); val != "" {
		c.TriageModel = val
	}
	if val := os.Getenv("DRAFT_MODEL"); val != "" {
		c.DraftModel = val
	}
	if val := os.Getenv("CALENDAR_MODEL"); val != "" {
		c.CalendarModel = val
	}
	if val := os.Getenv("EMBEDDING_MODEL"); val != "" {
		c.EmbeddingModel = val
	}
	if val := os.Getenv("USER_TZ"); val != "" {
		c.UserTZ = val
	}
	if val := os.Getenv("CREDENTIALS_PATH"); val != "" {
		c.CredentialsPath = val
	}
	if val := os.Getenv("TOKEN_PATH"); val != "" {
		c.TokenPath = val
	}
	if val := os.Getenv("SLACK_WEBHOOK_URL"); val != "" {
		c.SlackWebhookURL = strings.TrimSpace(val)
	}
	if val := os.Getenv("ENABLE_SLACK"); val != "" {
		c.EnableSlack = parseBool(val)
	}
	if val := os.Getenv("POLICY_DIR"); val != "" {
		c.PolicyDir = val
	}
	if val := os.Getenv("RAG_TOP_K"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.RAGTopK = n
		}
	}
	if val := os.Getenv("MAX_RESULTS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			c.MaxResults = n
		}
	}
}

// parseBool interprets the usual truthy spellings used in env files
func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
