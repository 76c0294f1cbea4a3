package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"intelhub/internal/apperr"
	"intelhub/internal/config"
	"io"
	"net/http"
	"strings"
	"time"
)

// Summary 模型返回的摘要与标签
type Summary struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// Summarizer 根据 prompt 生成摘要，失败统一返回 upstream_error
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (*Summary, error)
}

// ChatSummarizer 调用 OpenAI 兼容的 /chat/completions 接口
type ChatSummarizer struct {
	baseURL string
	token   string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// ChatResponse 只解析用得到的字段
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are a threat intelligence analyst. Summarize the record you are given in at most three sentences and extract up to eight short lowercase tags. Reply with JSON only: {"summary": "...", "tags": ["..."]}`

// NewChatSummarizer 未配置 LLM_BASE_URL 时返回 nil
func NewChatSummarizer(cfg config.LLMConfig) *ChatSummarizer {
	if cfg.BaseURL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatSummarizer{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *ChatSummarizer) Summarize(ctx context.Context, prompt string) (*Summary, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, apperr.Internal("encode summarizer request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("build summarizer request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("summarizer request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(fmt.Sprintf("summarizer returned HTTP %d", resp.StatusCode), fmt.Errorf("%s", snippet))
	}

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, apperr.Upstream("decode summarizer response", err)
	}
	if len(chat.Choices) == 0 {
		return nil, apperr.Upstream("summarizer returned no choices", nil)
	}
	return parseSummary(chat.Choices[0].Message.Content)
}

// parseSummary 去掉 ```json 代码块包裹后解析，摘要或标签为空视为格式错误
func parseSummary(content string) (*Summary, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var sum Summary
	if err := json.Unmarshal([]byte(text), &sum); err != nil {
		return nil, apperr.Upstream("summarizer returned malformed JSON", err)
	}
	sum.Summary = strings.TrimSpace(sum.Summary)
	tags := sum.Tags[:0]
	for _, tag := range sum.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	sum.Tags = tags
	if sum.Summary == "" || len(sum.Tags) == 0 {
		return nil, apperr.Upstream("summarizer response is missing summary or tags", nil)
	}
	return &sum, nil
}
