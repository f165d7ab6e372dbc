package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"spreadsheet-data-cleaner/internal/config"
	"spreadsheet-data-cleaner/internal/logger"
	"spreadsheet-data-cleaner/internal/models"
)

// Gateway sends one chat-style prompt to a language model and returns its text.
// Any failure is returned as an error wrapping models.ErrGateway; callers
// decide how to degrade.
type Gateway interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error)
}

// OpenAIClient is the Gateway backed by an OpenAI or Azure OpenAI deployment
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logger.Logger

	mu         sync.Mutex
	tokensUsed int
}

// OpenAIConfig holds the connection settings for OpenAIClient
type OpenAIConfig struct {
	// Azure mode is used when Endpoint is set
	Endpoint   string
	APIKey     string
	APIVersion string
	// Deployment name in Azure mode, model name otherwise
	Model string
	// Optional OpenAI-compatible base URL, ignored in Azure mode
	BaseURL string

	InsecureSkipVerify bool
	Timeout            time.Duration
}

// OpenAIConfigFromConfig picks Azure or plain OpenAI settings from process config
func OpenAIConfigFromConfig(cfg *config.Config) OpenAIConfig {
	if cfg.UseAzure() {
		return OpenAIConfig{
			Endpoint:           cfg.AzureEndpoint,
			APIKey:             cfg.AzureAPIKey,
			APIVersion:         cfg.AzureAPIVersion,
			Model:              cfg.AzureDeployment,
			InsecureSkipVerify: cfg.LLMInsecureSkipTLS,
			Timeout:            cfg.LLMTimeout,
		}
	}
	return OpenAIConfig{
		APIKey:             cfg.OpenAIAPIKey,
		Model:              cfg.OpenAIModel,
		BaseURL:            cfg.OpenAIBaseURL,
		InsecureSkipVerify: cfg.LLMInsecureSkipTLS,
		Timeout:            cfg.LLMTimeout,
	}
}

// NewOpenAIClient creates a gateway client from explicit configuration
func NewOpenAIClient(cfg OpenAIConfig, log *logger.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("language model API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("language model deployment or model name is required")
	}

	var clientConfig openai.ClientConfig
	if cfg.Endpoint != "" {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientConfig.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Model
		clientConfig.AzureModelMapperFunc = func(string) string {
			return deployment
		}
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}
	clientConfig.HTTPClient = newHTTPClient(cfg)

	if cfg.InsecureSkipVerify {
		log.Warn("TLS certificate verification disabled for language model endpoint", "endpoint", cfg.Endpoint)
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		log:    log.With("component", "OpenAIClient"),
	}, nil
}

func newHTTPClient(cfg OpenAIConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via LLM_INSECURE_SKIP_VERIFY
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Complete sends a system and user prompt and returns the trimmed text of the
// first choice
func (o *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	startTime := time.Now()

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       o.model,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: openai request failed: %v", models.ErrGateway, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices from OpenAI", models.ErrGateway)
	}

	o.mu.Lock()
	o.tokensUsed += resp.Usage.TotalTokens
	o.mu.Unlock()

	o.log.Debug("chat completion finished",
		"model", o.model,
		"tokens_used", resp.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GetModel returns the model or deployment being used
func (o *OpenAIClient) GetModel() string {
	return o.model
}

// TokensUsed returns the total tokens consumed by this client
func (o *OpenAIClient) TokensUsed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokensUsed
}

// assistantSystemPrompt is shared by the header detector and column mapper
const assistantSystemPrompt = "You are a helpful assistant."
