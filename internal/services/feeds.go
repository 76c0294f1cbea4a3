package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"intelhub/internal/apperr"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/robfig/cron/v3"
)

// FeedSource 外部勒索泄露数据源
type FeedSource interface {
	Name() string
	Fetch(ctx context.Context) ([]RawRecord, error)
}

func newFeedHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}
}

// NocoDBSource 从 NocoDB 表接口分页拉取记录
type NocoDBSource struct {
	url      string
	token    string
	pageSize int
	client   *http.Client
}

func NewNocoDBSource(rawURL, token string) *NocoDBSource {
	return &NocoDBSource{url: rawURL, token: token, pageSize: 100, client: newFeedHTTPClient()}
}

func (s *NocoDBSource) Name() string { return "nocodb" }

type nocoPage struct {
	List     []map[string]any `json:"list"`
	PageInfo struct {
		IsLastPage bool `json:"isLastPage"`
	} `json:"pageInfo"`
}

// 防止接口不返回 isLastPage 时无限翻页
const maxNocoPages = 1000

func (s *NocoDBSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	var out []RawRecord
	for page := 0; page < maxNocoPages; page++ {
		batch, last, err := s.fetchPage(ctx, page*s.pageSize)
		if err != nil {
			return out, err
		}
		for _, row := range batch {
			out = append(out, RawRecord(row))
		}
		if last || len(batch) == 0 {
			break
		}
	}
	return out, nil
}

func (s *NocoDBSource) fetchPage(ctx context.Context, offset int) ([]map[string]any, bool, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, false, apperr.Validation("NOCODB_URL", "invalid NocoDB url: %v", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(s.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, apperr.Internal("build nocodb request", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("xc-token", s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, apperr.Upstream("nocodb request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, apperr.Upstream(fmt.Sprintf("nocodb returned HTTP %d", resp.StatusCode), fmt.Errorf("%s", snippet))
	}

	var page nocoPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, apperr.Upstream("decode nocodb response", err)
	}
	return page.List, page.PageInfo.IsLastPage, nil
}

// RSSSource 把泄露站点的 RSS/Atom 条目映射成入库记录
type RSSSource struct {
	url    string
	parser *gofeed.Parser
}

func NewRSSSource(feedURL string) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = newFeedHTTPClient()
	return &RSSSource{url: feedURL, parser: parser}
}

func (s *RSSSource) Name() string { return "rss" }

func (s *RSSSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, apperr.Upstream("parse rss feed", err)
	}
	out := make([]RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, itemRecord(item))
	}
	return out, nil
}

// itemRecord 组织名取第一个分类，没有分类时取作者
func itemRecord(item *gofeed.Item) RawRecord {
	rec := RawRecord{"BreachName": strings.TrimSpace(item.Title)}

	switch {
	case len(item.Categories) > 0:
		rec["Group"] = item.Categories[0]
	case item.Author != nil:
		rec["Group"] = item.Author.Name
	}

	switch {
	case item.PublishedParsed != nil:
		rec["DetectionDate"] = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		rec["DetectionDate"] = item.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		rec["DetectionDate"] = item.Published
	}

	if item.Link != "" {
		rec["OriginalSource"] = item.Link
		if u, err := url.Parse(item.Link); err == nil && u.Hostname() != "" {
			rec["Domain"] = u.Hostname()
		}
	}
	return rec
}

// SyncReport 单个数据源一次同步的统计
type SyncReport struct {
	Source  string `json:"source"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// FeedSyncer 拉取所有数据源并逐条入库
type FeedSyncer struct {
	ingest   *IngestService
	sources  []FeedSource
	onChange []func()
	mu       sync.Mutex
}

func NewFeedSyncer(ingest *IngestService, sources ...FeedSource) *FeedSyncer {
	return &FeedSyncer{ingest: ingest, sources: sources}
}

// OnChange 注册回调，一轮同步写入了新条目后调用（手动触发和定时任务都会走到）
func (f *FeedSyncer) OnChange(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = append(f.onChange, fn)
}

// Enabled 是否配置了至少一个数据源
func (f *FeedSyncer) Enabled() bool { return len(f.sources) > 0 }

// Sync 同步一轮；不完整的记录计入 failed 并继续，数据源拉取失败记入报告与返回的错误
func (f *FeedSyncer) Sync(ctx context.Context) ([]SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reports := make([]SyncReport, 0, len(f.sources))
	var errs []error
	created := 0
	for _, src := range f.sources {
		report := SyncReport{Source: src.Name()}
		records, err := src.Fetch(ctx)
		report.Fetched = len(records)
		if err != nil {
			slog.Error("feed fetch failed", "source", src.Name(), "error", err)
			report.Error = err.Error()
			errs = append(errs, err)
		}

		for _, rec := range records {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			res, err := f.ingest.IngestEntry(ctx, rec)
			switch {
			case err != nil:
				report.Failed++
				level := slog.LevelError
				if apperr.Is(err, apperr.KindValidation) {
					level = slog.LevelWarn
				}
				slog.Log(ctx, level, "feed record rejected", "source", src.Name(), "error", err)
			case res.EntryCreated:
				report.Created++
			default:
				report.Skipped++
			}
		}

		slog.Info("feed sync finished",
			"source", report.Source,
			"fetched", report.Fetched,
			"created", report.Created,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
		created += report.Created
		reports = append(reports, report)
	}
	if created > 0 {
		for _, fn := range f.onChange {
			fn()
		}
	}
	return reports, errors.Join(errs...)
}

// Schedule 按 cron 表达式定时同步
func (f *FeedSyncer) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := f.Sync(ctx); err != nil {
			slog.Error("scheduled feed sync finished with errors", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("add feed sync schedule %q: %w", spec, err)
	}
	slog.Info("feed sync scheduled", "cron", spec, "entry_id", id)
	return id, nil
}
