package services

import (
	"context"
	"fmt"
	"intelhub/internal/apperr"
	"intelhub/internal/models"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 帖子正文过长时截断后再送给模型
const maxPromptContent = 6000

// AIService 帖子与条目的 AI 摘要：已有结果直接返回，否则计算后回写
type AIService struct {
	db         *gorm.DB
	summarizer Summarizer
}

// NewAIService summarizer 可以为 nil，此时需要计算时返回 upstream_error
func NewAIService(conn *gorm.DB, summarizer Summarizer) *AIService {
	return &AIService{db: conn, summarizer: summarizer}
}

func cached(summary *string, tags datatypes.JSONSlice[string]) (*Summary, bool) {
	if summary == nil || strings.TrimSpace(*summary) == "" || len(tags) == 0 {
		return nil, false
	}
	return &Summary{Summary: *summary, Tags: tags}, true
}

func (s *AIService) SummarizePost(ctx context.Context, id uuid.UUID, force bool) (*Summary, error) {
	post, err := loadPost(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if sum, ok := cached(post.AISummary, post.AITags); ok && !force {
		return sum, nil
	}
	sum, err := s.compute(ctx, postPrompt(post))
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, &models.ForumPost{}, id, sum); err != nil {
		return nil, err
	}
	slog.Info("forum post summarized", "post_id", id, "tags", len(sum.Tags))
	return sum, nil
}

func (s *AIService) SummarizeEntry(ctx context.Context, id uuid.UUID, force bool) (*Summary, error) {
	entry, err := loadEntry(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if sum, ok := cached(entry.AISummary, entry.AITags); ok && !force {
		return sum, nil
	}
	sum, err := s.compute(ctx, entryPrompt(entry))
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, &models.RansomwareEntry{}, id, sum); err != nil {
		return nil, err
	}
	slog.Info("ransomware entry summarized", "entry_id", id, "tags", len(sum.Tags))
	return sum, nil
}

// compute 模型调用不放在事务里
func (s *AIService) compute(ctx context.Context, prompt string) (*Summary, error) {
	if s.summarizer == nil {
		return nil, apperr.Upstream("summarizer not configured", nil)
	}
	return s.summarizer.Summarize(ctx, prompt)
}

func (s *AIService) store(ctx context.Context, model any, id uuid.UUID, sum *Summary) error {
	err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]any{
		"ai_summary": sum.Summary,
		"ai_tags":    datatypes.JSONSlice[string](sum.Tags),
	}).Error
	return apperr.FromDB(err, "ai summary")
}

func postPrompt(p *models.ForumPost) string {
	content := p.Content
	if r := []rune(content); len(r) > maxPromptContent {
		content = string(r[:maxPromptContent])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Forum post\nTitle: %s\nAuthor: %s\nCategory: %s\nDate: %s\n",
		p.Title, p.AuthorUsername, p.Category, p.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Content:\n%s\n", content)
	return b.String()
}

func entryPrompt(e *models.RansomwareEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ransomware leak entry\nGroup: %s\nVictim: %s\nDetected: %s\n",
		e.GroupName, e.BreachName, e.DetectionDate.Format("2006-01-02"))
	for _, f := range []struct {
		label string
		value *string
	}{
		{"Domain", e.Domain},
		{"Country", e.Country},
		{"Category", e.Category},
		{"Rank", e.Rank},
		{"Source", e.OriginalSource},
	} {
		if f.value != nil && *f.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, *f.value)
		}
	}
	return b.String()
}
