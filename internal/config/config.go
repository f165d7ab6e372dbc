// Package config loads process configuration from .env files and the
// environment.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"spreadsheet-data-cleaner/internal/models"
)

// Config holds every setting the binaries consume
type Config struct {
	// Language model gateway
	AzureEndpoint      string
	AzureAPIKey        string
	AzureAPIVersion    string
	AzureDeployment    string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string
	LLMInsecureSkipTLS bool
	LLMTimeout         time.Duration

	// Pipeline
	UploadFolder      string
	SparsityThreshold float64
	PreviewRows       int

	// AWS backends, all optional
	S3Bucket             string
	AWSRegion            string
	RunsTable            string
	CleaningFunctionName string

	// HTTP
	Port               string
	CORSAllowedOrigins []string

	LogMode string
}

// Load reads .env and .env.local (the latter wins) and then the environment
func Load() (*Config, error) {
	loadEnvFiles()
	return FromViper(newViper())
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// .env.local overrides .env
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_INSECURE_SKIP_VERIFY", false)
	v.SetDefault("LLM_TIMEOUT_SECONDS", 60)
	v.SetDefault("UPLOAD_FOLDER", "uploads")
	v.SetDefault("SPARSITY_THRESHOLD", models.DefaultSparsityThreshold)
	v.SetDefault("HEADER_PREVIEW_ROWS", models.DefaultPreviewRows)
	v.SetDefault("PORT", "5000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_MODE", "development")
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	uploadFolder, err := filepath.Abs(v.GetString("UPLOAD_FOLDER"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload folder: %w", err)
	}

	cfg := &Config{
		AzureEndpoint:        strings.TrimRight(strings.TrimSpace(v.GetString("AZURE_OPENAI_ENDPOINT")), "/"),
		AzureAPIKey:          strings.TrimSpace(v.GetString("AZURE_OPENAI_API_KEY")),
		AzureAPIVersion:      strings.TrimSpace(v.GetString("AZURE_OPENAI_API_VERSION")),
		AzureDeployment:      strings.TrimSpace(v.GetString("AZURE_OPENAI_API_DEPLOYMENT_NAME")),
		OpenAIAPIKey:         strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIModel:          strings.TrimSpace(v.GetString("OPENAI_MODEL")),
		OpenAIBaseURL:        strings.TrimSpace(v.GetString("OPENAI_BASE_URL")),
		LLMInsecureSkipTLS:   v.GetBool("LLM_INSECURE_SKIP_VERIFY"),
		LLMTimeout:           time.Duration(v.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second,
		UploadFolder:         uploadFolder,
		SparsityThreshold:    v.GetFloat64("SPARSITY_THRESHOLD"),
		PreviewRows:          v.GetInt("HEADER_PREVIEW_ROWS"),
		S3Bucket:             strings.TrimSpace(v.GetString("S3_BUCKET_NAME")),
		AWSRegion:            strings.TrimSpace(v.GetString("AWS_REGION")),
		RunsTable:            strings.TrimSpace(v.GetString("CLEANING_RUNS_TABLE")),
		CleaningFunctionName: strings.TrimSpace(v.GetString("CLEANING_FUNCTION_NAME")),
		Port:                 strings.TrimSpace(v.GetString("PORT")),
		CORSAllowedOrigins:   splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogMode:              v.GetString("LOG_MODE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges of numeric settings
func (c *Config) Validate() error {
	if c.SparsityThreshold < 0 || c.SparsityThreshold > 1 {
		return fmt.Errorf("SPARSITY_THRESHOLD must be between 0 and 1, got %v", c.SparsityThreshold)
	}
	if c.PreviewRows <= 0 {
		return fmt.Errorf("HEADER_PREVIEW_ROWS must be positive, got %d", c.PreviewRows)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// UseAzure reports whether the gateway should talk to an Azure OpenAI deployment
func (c *Config) UseAzure() bool {
	return c.AzureEndpoint != ""
}

// LLMConfigured reports whether any language model credentials are present
func (c *Config) LLMConfigured() bool {
	if c.UseAzure() {
		return c.AzureAPIKey != "" && c.AzureDeployment != ""
	}
	return c.OpenAIAPIKey != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
