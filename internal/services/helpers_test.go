package services

import (
	"intelhub/internal/apperr"
	"intelhub/internal/db"
	"intelhub/internal/utils"
	"testing"

	"gorm.io/gorm"
)

type testServices struct {
	db         *gorm.DB
	sources    *SourceService
	forums     *ForumService
	posts      *PostService
	ransomware *RansomwareService
	ingest     *IngestService
	telegram   *TelegramService
	admin      *AdminService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	conn := db.OpenTest(t)
	return &testServices{
		db:         conn,
		sources:    NewSourceService(conn),
		forums:     NewForumService(conn),
		posts:      NewPostService(conn),
		ransomware: NewRansomwareService(conn),
		ingest:     NewIngestService(conn),
		telegram:   NewTelegramService(conn),
		admin:      NewAdminService(conn),
	}
}

func baseInput(name string) SourceInput {
	return SourceInput{
		Name:      name,
		Status:    utils.Ptr(true),
		Author:    "analyst",
		Country:   "US",
		Language:  "en",
		Monitored: "YES_MANUAL",
	}
}

func forumInput(name string) ForumInput {
	return ForumInput{
		SourceInput: baseInput(name),
		UserCount:   utils.Ptr(10),
		PostCount:   utils.Ptr(5),
		ThreadCount: utils.Ptr(2),
		Categories:  []string{"General"},
	}
}

func groupInput(name string) RansomwareGroupInput {
	return RansomwareGroupInput{SourceInput: baseInput(name), GroupName: name}
}

func count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(model).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

// wantValidation 断言 err 为指定字段的 validation_error
func wantValidation(t *testing.T, err error, field string) {
	t.Helper()
	var e *apperr.Error
	if !apperrAs(err, &e) || e.Kind != apperr.KindValidation {
		t.Fatalf("want validation_error on %q, got %v", field, err)
	}
	if e.Field != field {
		t.Errorf("validation field = %q, want %q (%v)", e.Field, field, err)
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("want %s, got %v", kind, err)
	}
}
