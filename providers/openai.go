package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askforge/askforge/types"
)

// OpenAIConfig OpenAI 兼容端点配置。
type OpenAIConfig struct {
	// BaseURL 端点根地址，如 https://api.openai.com/v1
	BaseURL string
	// APIKey Bearer 凭证
	APIKey string
	// Model 生成模型名
	Model string
	// EmbeddingModel 嵌入模型名
	EmbeddingModel string
	// Temperature 采样温度
	Temperature float64
	// MaxTokens 单次生成 token 上限，≤0 不传
	MaxTokens int
	// Timeout HTTP 超时
	Timeout time.Duration
}

// DefaultOpenAIConfig 返回默认端点配置。
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Temperature:    0.2,
		Timeout:        60 * time.Second,
	}
}

// OpenAIClient 实现 rag.TextGenerator 与 rag.Embedder。
type OpenAIClient struct {
	config OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIClient 创建 OpenAI 兼容客户端。
func NewOpenAIClient(config OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	def := DefaultOpenAIConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = def.EmbeddingModel
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "openai_client")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate 调用 chat completions，返回首个候选的文本。
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrModelOutputInvalid, "no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed 调用 embeddings，返回文本向量。
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	req := embeddingRequest{Model: c.config.EmbeddingModel, Input: []string{text}}
	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, types.NewError(types.ErrModelOutputInvalid, "no data in embedding response")
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return types.NewError(types.ErrLLMFailed, "request failed").WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		c.logger.Warn("upstream returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("path", path),
			zap.String("message", msg))
		return types.NewError(types.ErrLLMFailed,
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrModelOutputInvalid, "decode response").WithCause(err)
	}
	return nil
}

// readErrorMessage 读取错误响应体，优先解析 OpenAI 风格的 error 对象。
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "failed to read error response"
	}
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
