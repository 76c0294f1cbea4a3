package services

import (
	"context"
	"intelhub/internal/models"
	"testing"
)

func TestSeedMockupAndClearAll(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	seed, err := s.admin.SeedMockup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if seed.Post.ForumID != seed.Forum.ID {
		t.Error("post not attached to forum")
	}
	got, err := s.forums.Get(ctx, seed.Forum.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Test Source" || got.UserCount != 10 || len(got.AssociatedDomains) != 2 {
		t.Errorf("forum = %+v", got)
	}

	if _, err := s.ingest.IngestEntry(ctx, darkCrewRecord()); err != nil {
		t.Fatal(err)
	}
	if err := s.admin.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	for _, model := range clearOrder {
		if n := count(t, s.db, model); n != 0 {
			t.Errorf("%T has %d rows after clear", model, n)
		}
	}
	if _, err := s.admin.SeedMockup(ctx); err != nil {
		t.Errorf("seed after clear: %v", err)
	}
	if n := count(t, s.db, &models.ForumPost{}); n != 1 {
		t.Errorf("posts = %d", n)
	}
}
