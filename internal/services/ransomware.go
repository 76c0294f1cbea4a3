package services

import (
	"context"
	"errors"
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/models"
	"intelhub/internal/validate"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RansomwareService 勒索组织与泄露条目
type RansomwareService struct {
	db      *gorm.DB
	metrics serviceMetrics
}

func NewRansomwareService(conn *gorm.DB) *RansomwareService {
	return &RansomwareService{db: conn, metrics: newServiceMetrics()}
}

func groupQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("sources").
		Select(models.RansomwareGroupColumns).
		Joins("JOIN ransomware_groups ON ransomware_groups.id = sources.id")
}

func entryQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("ransomware_entries").
		Select(models.RansomwareEntryColumns).
		Joins("JOIN ransomware_groups ON ransomware_groups.id = ransomware_entries.group_id")
}

// GroupEntryResult 组织与条目一起创建的结果
type GroupEntryResult struct {
	Group        *models.RansomwareGroup `json:"group"`
	Entry        *models.RansomwareEntry `json:"entry"`
	GroupCreated bool                    `json:"group_created"`
}

// CreateGroup 新建组织，group_name 重复返回 conflict
func (s *RansomwareService) CreateGroup(ctx context.Context, in RansomwareGroupInput) (*models.RansomwareGroup, error) {
	group, err := s.buildGroup(in)
	if err != nil {
		return nil, err
	}
	err = db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		existing, err := findGroupByName(tx, group.GroupName)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("ransomware group '"+group.GroupName+"' already exists", nil)
		}
		return insertGroup(tx, group)
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *RansomwareService) buildGroup(in RansomwareGroupInput) (*models.RansomwareGroup, error) {
	if err := validate.Required(in.Fields(), groupRequired...); err != nil {
		return nil, err
	}
	src, err := in.build(models.SourceTypeRansomwareGroup)
	if err != nil {
		return nil, err
	}
	return &models.RansomwareGroup{Source: src, GroupName: strings.TrimSpace(in.GroupName)}, nil
}

// CreateGroupAndEntry 按 group_name 复用或新建组织，再无条件新建一条条目。
// 与 IngestEntry 不同，这里不按 (组织, 名称, 日期) 去重。
func (s *RansomwareService) CreateGroupAndEntry(ctx context.Context, g RansomwareGroupInput, e RansomwareEntryInput) (*GroupEntryResult, error) {
	group, err := s.buildGroup(g)
	if err != nil {
		return nil, err
	}
	if err := validate.Required(e.Fields(), entryRequired...); err != nil {
		return nil, err
	}
	entry, err := e.build()
	if err != nil {
		return nil, err
	}

	return retryOnConflict(ctx, s.metrics.retries, "create_group_and_entry", func() (*GroupEntryResult, error) {
		res := &GroupEntryResult{}
		err := db.Tx(ctx, s.db, func(tx *gorm.DB) error {
			existing, err := findGroupByName(tx, group.GroupName)
			if err != nil {
				return err
			}
			if existing != nil {
				res.Group = existing
			} else {
				fresh := *group
				if err := insertGroup(tx, &fresh); err != nil {
					return err
				}
				res.Group, res.GroupCreated = &fresh, true
			}
			row := entry
			row.GroupID = res.Group.ID
			if err := insertEntry(tx, &row); err != nil {
				return err
			}
			row.GroupName = res.Group.GroupName
			res.Entry = &row
			return nil
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// insertGroup 写 sources 行与 ransomware_groups 行
func insertGroup(tx *gorm.DB, group *models.RansomwareGroup) error {
	if err := insertSource(tx, &group.Source); err != nil {
		return err
	}
	detail := group.Detail()
	if err := tx.Omit(clause.Associations).Create(&detail).Error; err != nil {
		return apperr.FromDB(err, "ransomware group")
	}
	return nil
}

func insertEntry(tx *gorm.DB, entry *models.RansomwareEntry) error {
	if err := tx.Omit(clause.Associations).Create(entry).Error; err != nil {
		return apperr.FromDB(err, "ransomware entry")
	}
	return nil
}

// findGroupByName 不存在时返回 nil, nil
func findGroupByName(tx *gorm.DB, name string) (*models.RansomwareGroup, error) {
	var group models.RansomwareGroup
	err := groupQuery(tx).Where("ransomware_groups.group_name = ?", name).Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(err, "ransomware group")
	}
	return &group, nil
}

func loadGroup(tx *gorm.DB, id uuid.UUID) (*models.RansomwareGroup, error) {
	var group models.RansomwareGroup
	err := groupQuery(tx).Where("sources.id = ?", id).Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("ransomware group", id)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "ransomware group")
	}
	return &group, nil
}

func (s *RansomwareService) GetGroup(ctx context.Context, id uuid.UUID) (*models.RansomwareGroup, error) {
	return loadGroup(s.db.WithContext(ctx), id)
}

func (s *RansomwareService) ListGroups(ctx context.Context) ([]models.RansomwareGroup, error) {
	out := []models.RansomwareGroup{}
	if err := groupQuery(s.db.WithContext(ctx)).Order("ransomware_groups.group_name").Find(&out).Error; err != nil {
		return nil, apperr.FromDB(err, "ransomware groups")
	}
	return out, nil
}

// DeleteGroup 删除组织及其全部条目
func (s *RansomwareService) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadGroup(tx, id); err != nil {
			return err
		}
		return deleteGroupTx(tx, id)
	})
}

// ListEntries 某组织的条目，按发现时间倒序
func (s *RansomwareService) ListEntries(ctx context.Context, groupID uuid.UUID) ([]models.RansomwareEntry, error) {
	conn := s.db.WithContext(ctx)
	if _, err := loadGroup(conn, groupID); err != nil {
		return nil, err
	}
	out := []models.RansomwareEntry{}
	err := entryQuery(conn).
		Where("ransomware_entries.group_id = ?", groupID).
		Order("ransomware_entries.detection_date DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.FromDB(err, "ransomware entries")
	}
	return out, nil
}

func (s *RansomwareService) GetEntry(ctx context.Context, id uuid.UUID) (*models.RansomwareEntry, error) {
	return loadEntry(s.db.WithContext(ctx), id)
}

func loadEntry(tx *gorm.DB, id uuid.UUID) (*models.RansomwareEntry, error) {
	var entry models.RansomwareEntry
	err := entryQuery(tx).Where("ransomware_entries.id = ?", id).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("ransomware entry", id)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "ransomware entry")
	}
	return &entry, nil
}

func (s *RansomwareService) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return db.Tx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadEntry(tx, id); err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", id).Delete(&models.RansomwareIngestKey{}).Error; err != nil {
			return apperr.FromDB(err, "ingest key")
		}
		if err := tx.Where("id = ?", id).Delete(&models.RansomwareEntry{}).Error; err != nil {
			return apperr.FromDB(err, "ransomware entry")
		}
		return nil
	})
}
