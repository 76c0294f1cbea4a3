package services

import (
	"context"
	"intelhub/internal/apperr"
	"intelhub/internal/models"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"gorm.io/gorm"
)

func darkCrewRecord() RawRecord {
	return RawRecord{
		"Id":            float64(42),
		"CreatedAt":     "2024-03-11T00:00:00Z",
		"UpdatedAt":     "2024-03-11T00:00:00Z",
		"Group":         "DarkCrew",
		"BreachName":    "Acme Corp",
		"DetectionDate": "2024-03-10T14:30:00",
		"Domain":        "acme.com",
		"Country":       "US",
		"Category":      "Manufacturing",
	}
}

func TestIngestCreatesGroupWithDefaults(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	res, err := s.ingest.IngestEntry(ctx, darkCrewRecord())
	if err != nil {
		t.Fatal(err)
	}
	if !res.GroupCreated || !res.EntryCreated || res.Status != StatusCreated {
		t.Errorf("result = %+v", res)
	}
	g := res.Group
	if g.GroupName != "DarkCrew" || g.Name != "DarkCrew" || g.Country != "US" || g.Language != "Unknown" {
		t.Errorf("group = %+v", g)
	}
	if !g.Status || g.Monitored != models.MonitoredAutomated || g.Author != "feed-ingestion" {
		t.Errorf("group defaults = %+v", g)
	}
	if g.Description == nil || *g.Description != "Auto-created by feed ingestion" {
		t.Errorf("description = %v", g.Description)
	}
	if len(g.AssociatedDomains) != 1 || g.AssociatedDomains[0] != "acme.com" {
		t.Errorf("domains = %v", g.AssociatedDomains)
	}

	e := res.Entry
	want := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	if !e.DetectionDate.Equal(want) || e.GroupName != "DarkCrew" || e.Category == nil || *e.Category != "Manufacturing" {
		t.Errorf("entry = %+v", e)
	}

	stored, err := s.ransomware.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.DetectionDate.Equal(want) {
		t.Errorf("stored detection date = %v", stored.DetectionDate)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	first, err := s.ingest.IngestEntry(ctx, darkCrewRecord())
	if err != nil {
		t.Fatal(err)
	}
	// 同一时刻的不同写法视为同一条
	rec := darkCrewRecord()
	rec["DetectionDate"] = "2024-03-10T14:30:00Z"
	second, err := s.ingest.IngestEntry(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if second.EntryCreated || second.GroupCreated || second.Status != StatusSkippedDuplicate {
		t.Errorf("second = %+v", second)
	}
	if second.Entry.ID != first.Entry.ID {
		t.Errorf("duplicate should return the existing entry")
	}
	if n := count(t, s.db, &models.RansomwareEntry{}); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
	if n := count(t, s.db, &models.Source{}); n != 1 {
		t.Errorf("sources = %d, want 1", n)
	}

	// 日期不同则是新条目，组织复用
	rec = darkCrewRecord()
	rec["DetectionDate"] = "2024-03-11"
	third, err := s.ingest.IngestEntry(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !third.EntryCreated || third.GroupCreated {
		t.Errorf("third = %+v", third)
	}
}

func TestIngestSkipsEntriesCreatedThroughAPI(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	if _, err := s.ransomware.CreateGroupAndEntry(ctx, groupInput("DarkCrew"), RansomwareEntryInput{
		BreachName: "Acme Corp", DetectionDate: "2024-03-10 14:30:00",
	}); err != nil {
		t.Fatal(err)
	}
	res, err := s.ingest.IngestEntry(ctx, darkCrewRecord())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSkippedDuplicate {
		t.Errorf("status = %s", res.Status)
	}
	if res.Group.Author != "analyst" {
		t.Error("existing group must be returned unchanged")
	}
}

func TestIngestValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	tests := []struct {
		drop  string
		field string
	}{
		{"BreachName", "BreachName"},
		{"DetectionDate", "DetectionDate"},
		{"Group", "Group"},
	}
	for _, tt := range tests {
		rec := darkCrewRecord()
		delete(rec, tt.drop)
		_, err := s.ingest.IngestEntry(ctx, rec)
		wantValidation(t, err, tt.field)
	}

	rec := darkCrewRecord()
	rec["Group"] = "   "
	_, err := s.ingest.IngestEntry(ctx, rec)
	wantValidation(t, err, "Group")

	rec = darkCrewRecord()
	rec["DetectionDate"] = "the day before yesterday"
	_, err = s.ingest.IngestEntry(ctx, rec)
	wantValidation(t, err, "DetectionDate")

	if n := count(t, s.db, &models.Source{}); n != 0 {
		t.Errorf("rejected records wrote %d sources", n)
	}
}

func TestIngestCountryDefaultsToUnknown(t *testing.T) {
	s := newTestServices(t)
	rec := darkCrewRecord()
	delete(rec, "Country")
	delete(rec, "Domain")
	res, err := s.ingest.IngestEntry(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Group.Country != "Unknown" || len(res.Group.AssociatedDomains) != 0 {
		t.Errorf("group = %+v", res.Group)
	}
}

func TestIngestConcurrentDuplicates(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*IngestResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ingest.IngestEntry(ctx, darkCrewRecord())
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].EntryCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
	if n := count(t, s.db, &models.RansomwareEntry{}); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestRawRecordStripAndGet(t *testing.T) {
	rec := RawRecord{"Id": 1, "created_at": "x", "breachname": "Acme", "Group": "G"}.Strip()
	if _, ok := rec["Id"]; ok {
		t.Error("Id not stripped")
	}
	if _, ok := rec["created_at"]; ok {
		t.Error("created_at not stripped")
	}
	if rec.String("BreachName") != "Acme" {
		t.Error("case-insensitive lookup failed")
	}
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()
	calls := 0
	v, err := retryOnConflict(ctx, noop.Int64Counter{}, "test", func() (int, error) {
		calls++
		if calls < 2 {
			return 0, apperr.Conflict("race", nil)
		}
		return 7, nil
	})
	if err != nil || v != 7 || calls != 2 {
		t.Errorf("v=%d err=%v calls=%d", v, err, calls)
	}

	calls = 0
	_, err = retryOnConflict(ctx, noop.Int64Counter{}, "test", func() (int, error) {
		calls++
		return 0, apperr.Conflict("always", nil)
	})
	if !apperr.Is(err, apperr.KindConflict) || calls != conflictAttempts {
		t.Errorf("err=%v calls=%d", err, calls)
	}

	calls = 0
	_, err = retryOnConflict(ctx, noop.Int64Counter{}, "test", func() (int, error) {
		calls++
		return 0, apperr.Missing("x")
	})
	if calls != 1 || !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("validation errors must not be retried: calls=%d", calls)
	}
}

// hideFirstGroupLookup 让第一次按组名查询看不到已提交的组，
// 模拟另一个写入方在本事务读取之后、插入之前抢先建组。
func hideFirstGroupLookup(t *testing.T, conn *gorm.DB) *bool {
	t.Helper()
	hidden := false
	err := conn.Callback().Query().After("gorm:query").Register("test:hide_group_lookup", func(tx *gorm.DB) {
		if hidden || tx.Error != nil {
			return
		}
		group, ok := tx.Statement.Dest.(*models.RansomwareGroup)
		if !ok || !strings.Contains(tx.Statement.SQL.String(), "group_name") {
			return
		}
		hidden = true
		*group = models.RansomwareGroup{}
		tx.Statement.RowsAffected = 0
		tx.AddError(gorm.ErrRecordNotFound)
	})
	if err != nil {
		t.Fatal(err)
	}
	return &hidden
}

func TestIngestLosingGroupCreationRetriesOntoWinner(t *testing.T) {
	reader := withMeterReader(t)
	s := newTestServices(t)
	ctx := context.Background()

	winner, err := s.ransomware.CreateGroup(ctx, groupInput("DarkCrew"))
	if err != nil {
		t.Fatal(err)
	}
	hidden := hideFirstGroupLookup(t, s.db)

	res, err := s.ingest.IngestEntry(ctx, darkCrewRecord())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !*hidden {
		t.Fatal("group lookup was never intercepted")
	}
	if res.GroupCreated || !res.EntryCreated || res.Group.ID != winner.ID {
		t.Errorf("result = group_created %v entry_created %v group %s, want attach to %s",
			res.GroupCreated, res.EntryCreated, res.Group.ID, winner.ID)
	}
	if n := count(t, s.db, &models.RansomwareGroupDetail{}); n != 1 {
		t.Errorf("groups = %d, want 1", n)
	}
	if n := count(t, s.db, &models.Source{}); n != 1 {
		t.Errorf("sources = %d, the losing insert must roll back", n)
	}
	if got := counterValue(t, reader, "intelhub_conflict_retries_total", "op", "ingest_entry"); got != 1 {
		t.Errorf("conflict retries = %d, want 1", got)
	}
}

func TestCreateGroupAndEntryLosingGroupCreationRetriesOntoWinner(t *testing.T) {
	reader := withMeterReader(t)
	s := newTestServices(t)
	ctx := context.Background()

	winner, err := s.ransomware.CreateGroup(ctx, groupInput("DarkCrew"))
	if err != nil {
		t.Fatal(err)
	}
	hidden := hideFirstGroupLookup(t, s.db)

	res, err := s.ransomware.CreateGroupAndEntry(ctx, groupInput("DarkCrew"), RansomwareEntryInput{
		BreachName:    "Acme Corp",
		DetectionDate: "2024-03-10",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !*hidden {
		t.Fatal("group lookup was never intercepted")
	}
	if res.GroupCreated || res.Group.ID != winner.ID || res.Entry.GroupID != winner.ID {
		t.Errorf("result = group_created %v group %s, want attach to %s", res.GroupCreated, res.Group.ID, winner.ID)
	}
	if n := count(t, s.db, &models.RansomwareGroupDetail{}); n != 1 {
		t.Errorf("groups = %d, want 1", n)
	}
	if n := count(t, s.db, &models.RansomwareEntry{}); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
	if got := counterValue(t, reader, "intelhub_conflict_retries_total", "op", "create_group_and_entry"); got != 1 {
		t.Errorf("conflict retries = %d, want 1", got)
	}
}
