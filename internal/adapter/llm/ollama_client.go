package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap"
)

var ErrModelNotFound = errors.New("model not found")

// OllamaClient клиент для работы с Ollama API: установка vision-модели
// и распознавание страниц без текстового слоя
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	pull       bool
	logger     *zap.Logger
}

// NewOllamaClient создаёт новый экземпляр OllamaClient
func NewOllamaClient(cfg config.OllamaConfig, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: strings.TrimSuffix(cfg.Host, "/"),
		model:   cfg.Model,
		pull:    cfg.PullModel,
		logger:  logger,
	}
}

// Install проверяет наличие модели и при необходимости скачивает её
func (c *OllamaClient) Install(ctx context.Context) error {
	if err := c.CheckHealth(ctx); err != nil {
		return err
	}

	err := c.CheckModel(ctx)
	if err == nil || !errors.Is(err, ErrModelNotFound) || !c.pull {
		return err
	}

	c.logger.Info("Pulling model", zap.String("model", c.model))

	startTime := time.Now()
	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	if err := c.post(ctx, "/api/pull", map[string]any{"model": c.model, "stream": false}, &resp); err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("ollama error: %s", resp.Error)
	}

	c.logger.Info("Model pulled",
		zap.String("model", c.model),
		zap.String("status", resp.Status),
		zap.Duration("duration", time.Since(startTime)),
	)

	return nil
}

// RecognizeText распознаёт текст на изображении страницы
func (c *OllamaClient) RecognizeText(ctx context.Context, pngData []byte, lang domain.OCRLanguage) (string, error) {
	c.logger.Debug("Starting page recognition",
		zap.String("model", c.model),
		zap.Int("image_size", len(pngData)),
		zap.String("language", lang.String()),
	)

	// Формируем запрос для /api/chat (vision модели)
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": buildPrompt(lang),
				"images":  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
		},
	}

	var chatResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error,omitempty"`
	}

	startTime := time.Now()
	if err := c.post(ctx, "/api/chat", reqBody, &chatResp); err != nil {
		return "", err
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", chatResp.Error)
	}

	c.logger.Debug("Page recognized",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("text_size", len(chatResp.Message.Content)),
	)

	return cleanResponse(chatResp.Message.Content), nil
}

// buildPrompt формирует промпт для распознавания страницы
func buildPrompt(lang domain.OCRLanguage) string {
	prompt := `You are an OCR engine. Transcribe all text on the provided page image.

INSTRUCTIONS:
1. Keep the reading order and line breaks of the page
2. Separate paragraphs with an empty line
3. Do not translate, summarize or comment
4. Return ONLY the transcribed text`

	if name := lang.DisplayName(); name != "" {
		prompt += fmt.Sprintf("\n\nThe page is written in %s.", name)
	}
	return prompt
}

// cleanResponse убирает markdown-обёртку из ответа модели
func cleanResponse(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		if i := strings.IndexByte(response, '\n'); i >= 0 {
			response = response[i+1:]
		}
		response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	}
	return strings.TrimSpace(response)
}

// CheckHealth проверяет доступность Ollama
func (c *OllamaClient) CheckHealth(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

// CheckModel проверяет, что модель загружена
func (c *OllamaClient) CheckModel(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	for _, model := range tagsResp.Models {
		if strings.HasPrefix(model.Name, strings.Split(c.model, ":")[0]) {
			c.logger.Info("Model found", zap.String("model", model.Name))
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrModelNotFound, c.model)
}

func (c *OllamaClient) post(ctx context.Context, path string, body any, out any) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
