package services

import (
	"context"
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/models"
	"intelhub/internal/utils"
	"intelhub/internal/validate"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

const (
	StatusCreated          = "created"
	StatusSkippedDuplicate = "skipped-duplicate"
)

// 自动建组时的默认值
const (
	autoGroupDescription = "Auto-created by feed ingestion"
	autoGroupNature      = "ransomware"
	autoGroupAuthor      = "feed-ingestion"
	autoGroupDiscovery   = "nocodb"
	unknownValue         = "Unknown"
)

// RawRecord 外部数据源的一条原始记录
type RawRecord map[string]any

// 数据源自带的簿记字段，入库前丢弃
var bookkeepingFields = map[string]bool{
	"id":         true,
	"createdat":  true,
	"updatedat":  true,
	"created_at": true,
	"updated_at": true,
}

// Strip 去掉簿记字段，返回新记录
func (r RawRecord) Strip() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		if bookkeepingFields[strings.ToLower(k)] {
			continue
		}
		out[k] = v
	}
	return out
}

// Get 先精确匹配字段名，再不区分大小写匹配
func (r RawRecord) Get(name string) any {
	if v, ok := r[name]; ok {
		return v
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

func (r RawRecord) String(name string) string {
	return utils.StringValue(r.Get(name))
}

// IngestResult 一次入库的结果
type IngestResult struct {
	Group        *models.RansomwareGroup `json:"group"`
	Entry        *models.RansomwareEntry `json:"entry"`
	GroupCreated bool                    `json:"group_created"`
	EntryCreated bool                    `json:"entry_created"`
	Status       string                  `json:"status"`
}

// IngestService 外部 feed 记录入库，按 (组织名, 泄露名, 发现时间) 幂等
type IngestService struct {
	db      *gorm.DB
	metrics serviceMetrics
}

func NewIngestService(conn *gorm.DB) *IngestService {
	return &IngestService{db: conn, metrics: newServiceMetrics()}
}

// IngestEntry 单条记录入库。重复记录返回 skipped-duplicate，不写任何数据。
func (s *IngestService) IngestEntry(ctx context.Context, raw RawRecord) (*IngestResult, error) {
	rec := raw.Strip()
	name := rec.String("Group")
	breach := rec.String("BreachName")
	rawDate := rec.String("DetectionDate")

	fields := validate.Fields{"BreachName": breach, "DetectionDate": rawDate, "Group": name}
	if err := validate.Required(fields, "BreachName", "DetectionDate", "Group"); err != nil {
		s.metrics.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "invalid")))
		return nil, err
	}
	detected, err := parseTimestampField("DetectionDate", rawDate)
	if err != nil {
		s.metrics.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "invalid")))
		return nil, err
	}

	entry := models.RansomwareEntry{
		BreachName:     breach,
		Domain:         utils.OptionalString(rec.Get("Domain")),
		Rank:           utils.OptionalString(rec.Get("Rank")),
		Category:       utils.OptionalString(rec.Get("Category")),
		DetectionDate:  detected,
		Country:        utils.OptionalString(rec.Get("Country")),
		OriginalSource: utils.OptionalString(rec.Get("OriginalSource")),
		Download:       utils.OptionalString(rec.Get("Download")),
	}

	res, err := retryOnConflict(ctx, s.metrics.retries, "ingest_entry", func() (*IngestResult, error) {
		return s.ingestOnce(ctx, name, entry)
	})
	if err != nil {
		s.metrics.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
		return nil, err
	}
	s.metrics.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("status", res.Status)))
	slog.Debug("ingested ransomware entry",
		"group", name, "breach", breach, "status", res.Status, "group_created", res.GroupCreated)
	return res, nil
}

// ingestOnce 一个完整的工作单元：查重、必要时建组、写条目和去重键
func (s *IngestService) ingestOnce(ctx context.Context, name string, entry models.RansomwareEntry) (*IngestResult, error) {
	res := &IngestResult{}
	err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		group, err := findGroupByName(tx, name)
		if err != nil {
			return err
		}
		if group != nil {
			dup, err := findEntryByNaturalKey(tx, name, entry.BreachName, entry.DetectionDate)
			if err != nil {
				return err
			}
			if dup != nil {
				res.Group, res.Entry, res.Status = group, dup, StatusSkippedDuplicate
				return nil
			}
		} else {
			group = autoGroup(name, entry)
			if err := validate.Required(sourceFields(group.Source), sourceRequired...); err != nil {
				return err
			}
			if err := insertGroup(tx, group); err != nil {
				return err
			}
			res.GroupCreated = true
		}

		entry.GroupID = group.ID
		if err := insertEntry(tx, &entry); err != nil {
			return err
		}
		key := models.RansomwareIngestKey{
			GroupName:     name,
			BreachName:    entry.BreachName,
			DetectionDate: entry.DetectionDate,
			EntryID:       entry.ID,
		}
		if err := tx.Create(&key).Error; err != nil {
			return apperr.FromDB(err, "ransomware entry")
		}
		entry.GroupName = name
		res.Group, res.Entry = group, &entry
		res.EntryCreated, res.Status = true, StatusCreated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// findEntryByNaturalKey 按自然键查找已有条目（包括非 feed 写入的条目）
func findEntryByNaturalKey(tx *gorm.DB, group, breach string, detected time.Time) (*models.RansomwareEntry, error) {
	var entry models.RansomwareEntry
	err := entryQuery(tx).
		Where("ransomware_groups.group_name = ? AND ransomware_entries.breach_name = ? AND ransomware_entries.detection_date = ?",
			group, breach, detected).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, apperr.FromDB(err, "ransomware entry")
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}

func autoGroup(name string, entry models.RansomwareEntry) *models.RansomwareGroup {
	country := unknownValue
	if entry.Country != nil {
		country = *entry.Country
	}
	var domains []string
	if entry.Domain != nil {
		domains = []string{*entry.Domain}
	}
	return &models.RansomwareGroup{
		Source: models.Source{
			Name:              name,
			Description:       utils.Ptr(autoGroupDescription),
			Type:              models.SourceTypeRansomwareGroup,
			Nature:            utils.Ptr(autoGroupNature),
			Status:            true,
			Author:            autoGroupAuthor,
			Country:           country,
			Language:          unknownValue,
			AssociatedDomains: domains,
			Monitored:         models.MonitoredAutomated,
			DiscoverySource:   utils.Ptr(autoGroupDiscovery),
		},
		GroupName: name,
	}
}
