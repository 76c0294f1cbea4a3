package services

import (
	"context"
	"encoding/json"
	"intelhub/internal/apperr"
	"intelhub/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Expected Bearer test-token, got %s", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v, err = %v", req, err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		var resp ChatResponse
		resp.Choices = make([]struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}, 1)
		resp.Choices[0].Message.Content = content
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestSummarizer(url string) *ChatSummarizer {
	return NewChatSummarizer(config.LLMConfig{BaseURL: url + "/", Token: "test-token", Model: "test-model"})
}

func TestChatSummarizer(t *testing.T) {
	server := chatServer(t, http.StatusOK, "```json\n{\"summary\": \"Initial access broker sells VPN access.\", \"tags\": [\"access\", \" vpn \", \"\"]}\n```")
	s := newTestSummarizer(server.URL)

	sum, err := s.Summarize(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.Summary != "Initial access broker sells VPN access." {
		t.Errorf("summary = %q", sum.Summary)
	}
	if len(sum.Tags) != 2 || sum.Tags[1] != "vpn" {
		t.Errorf("tags = %v", sum.Tags)
	}
}

func TestChatSummarizerUpstreamErrors(t *testing.T) {
	cases := map[string]*httptest.Server{
		"http error":    chatServer(t, http.StatusInternalServerError, ""),
		"not json":      chatServer(t, http.StatusOK, "I cannot help with that"),
		"missing tags":  chatServer(t, http.StatusOK, `{"summary":"x","tags":[]}`),
		"empty summary": chatServer(t, http.StatusOK, `{"summary":" ","tags":["a"]}`),
	}
	for name, server := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestSummarizer(server.URL).Summarize(context.Background(), "prompt")
			if !apperr.Is(err, apperr.KindUpstream) {
				t.Errorf("want upstream_error, got %v", err)
			}
		})
	}
}

func TestNewChatSummarizerUnconfigured(t *testing.T) {
	if NewChatSummarizer(config.LLMConfig{}) != nil {
		t.Error("missing base url should disable the summarizer")
	}
}
