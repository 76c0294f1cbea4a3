package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestFromDB(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", gorm.ErrRecordNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), KindNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, KindConflict},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, KindConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: ransomware_groups.group_name"), KindConflict},
		{"foreign key", gorm.ErrForeignKeyViolated, KindValidation},
		{"other", errors.New("connection reset"), KindInternal},
		{"already typed", NotFound("forum", 1), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(FromDB(tt.err, "row")); got != tt.want {
				t.Errorf("KindOf(FromDB(%v)) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
	if FromDB(nil, "row") != nil {
		t.Error("FromDB(nil) should be nil")
	}
}

func TestMissingNamesField(t *testing.T) {
	err := Missing("country")
	if err.Field != "country" || err.Kind != KindValidation {
		t.Fatalf("unexpected error %+v", err)
	}
	if HTTPStatus(KindOf(err)) != http.StatusUnprocessableEntity {
		t.Errorf("validation should map to 422")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("plain errors are internal")
	}
	if KindOf(nil) != "" {
		t.Error("nil has no kind")
	}
	wrapped := fmt.Errorf("commit: %w", Conflict("group exists", nil))
	if !Is(wrapped, KindConflict) {
		t.Error("wrapped conflict not detected")
	}
}
