package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/crewzy/internal/logger"
	"github.com/spigell/crewzy/internal/remote"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultMaxLogLength   = 200
	providerName          = "gemini"
)

// modelsAPI is the subset of *genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Options configures the Gemini client.
type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Dimensions     int
	Temperature    *float32
	Timeout        time.Duration
	MaxLogLength   int
}

// Client wraps the Google GenAI client for prompt and embedding calls.
type Client struct {
	models         modelsAPI
	model          string
	embeddingModel string
	dimensions     int
	temperature    *float32
	timeout        time.Duration
	maxLogLen      int
	logger         *zap.Logger
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, opts, log), nil
}

func newClient(models modelsAPI, opts Options, log *zap.Logger) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	embeddingModel := strings.TrimSpace(opts.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Client{
		models:         models,
		model:          model,
		embeddingModel: embeddingModel,
		dimensions:     opts.Dimensions,
		temperature:    opts.Temperature,
		timeout:        opts.Timeout,
		maxLogLen:      maxLogLen,
		logger:         logger.WithCommonFields(log, providerName, model),
	}
}

// GenerateContent sends the message with the given system instruction and
// returns the concatenated text of the response.
func (c *Client) GenerateContent(ctx context.Context, systemInstruction, message string) (string, error) {
	if c == nil || c.models == nil {
		return "", errors.New("gemini client is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{Temperature: c.temperature}
	if system := strings.TrimSpace(systemInstruction); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	c.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", logger.TruncateForLog(message, c.maxLogLen)),
	)

	resp, err := remote.Do(ctx, "gemini generate content", c.timeout, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.models.GenerateContent(ctx, c.model, genai.Text(message), config)
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	c.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", logger.TruncateForLog(output, c.maxLogLen)),
	)

	return output, nil
}

// Embed returns the embedding vector of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input must not be empty")
	}

	config := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if c.dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(int32(c.dimensions))
	}

	resp, err := remote.Do(ctx, "gemini embed content", c.timeout, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return c.models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), config)
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini api returned no embeddings")
	}

	values := resp.Embeddings[0].Values
	if len(values) == 0 {
		return nil, errors.New("gemini api returned an empty embedding")
	}

	c.logger.Debug("gemini embedding",
		zap.String("text", logger.TruncateForLog(text, c.maxLogLen)),
		zap.Int("dimensions", len(values)),
	)

	return values, nil
}

// Model returns the generation model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
