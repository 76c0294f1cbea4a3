package search

import (
	"testing"

	"gorm.io/gorm/clause"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want Filter
	}{
		{"title:contains:leak", true, Filter{"title", "contains", "leak"}},
		{"url:startswith:http://example.com", true, Filter{"url", "startswith", "http://example.com"}},
		{" date : on : 2024-03-10 ", true, Filter{"date", "on", "2024-03-10"}},
		{"title:contains", false, Filter{}},
		{"title::leak", false, Filter{}},
		{":contains:leak", false, Filter{}},
		{"title:contains:", false, Filter{}},
		{"", false, Filter{}},
	}
	for _, tt := range tests {
		got, ok := ParseFilter(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseFilter(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseFilter(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseFiltersDropsMalformed(t *testing.T) {
	got := ParseFilters([]string{"title:contains:a", "broken", "category:equals:b"})
	if len(got) != 2 {
		t.Fatalf("got %d filters, want 2", len(got))
	}
}

func TestTextPredicate(t *testing.T) {
	f := Field{Name: "title", Column: "forum_posts.title"}
	tests := []struct {
		op      string
		pattern string
	}{
		{"contains", "%leak%"},
		{"CONTAINS", "%leak%"},
		{"startswith", "leak%"},
		{"endswith", "%leak"},
	}
	for _, tt := range tests {
		expr, ok := f.Predicate(tt.op, "LEAK")
		if !ok {
			t.Fatalf("operator %s rejected", tt.op)
		}
		e := expr.(clause.Expr)
		if e.Vars[0] != tt.pattern {
			t.Errorf("%s pattern = %v, want %s", tt.op, e.Vars[0], tt.pattern)
		}
	}

	expr, ok := f.Predicate("equals", "Exact")
	if !ok || expr.(clause.Expr).Vars[0] != "exact" {
		t.Errorf("equals should compare lower-cased value, got %+v", expr)
	}

	if _, ok := f.Predicate("regex", "x"); ok {
		t.Error("unknown operator must be rejected")
	}
	if _, ok := f.Predicate("on", "2024-03-10"); ok {
		t.Error("date operator on text field must be rejected")
	}
}

func TestLikeValueEscaped(t *testing.T) {
	f := Field{Name: "title", Column: "title"}
	expr, _ := f.Predicate("contains", "100%_done")
	if got := expr.(clause.Expr).Vars[0]; got != `%100\%\_done%` {
		t.Errorf("pattern = %v", got)
	}
}

func TestDatePredicate(t *testing.T) {
	f := Field{Name: "date", Column: "forum_posts.date", Kind: DateField}
	for _, op := range []string{"on", "before", "after", "ON"} {
		if _, ok := f.Predicate(op, "2024-03-10"); !ok {
			t.Errorf("operator %s rejected", op)
		}
	}
	if _, ok := f.Predicate("on", "March 10"); ok {
		t.Error("malformed date must be rejected")
	}
	if _, ok := f.Predicate("contains", "2024"); ok {
		t.Error("text operator on date field must be rejected")
	}
}

func TestCompile(t *testing.T) {
	ent := forumPostEntity()

	if _, ok := ent.Compile("", nil); ok {
		t.Error("no conditions should compile to nothing")
	}
	if _, ok := ent.Compile("  ", []Filter{{"unknown", "contains", "x"}, {"title", "regex", "x"}}); ok {
		t.Error("only unusable filters should compile to nothing")
	}

	expr, ok := ent.Compile("leak", []Filter{{"Title", "contains", "db"}, {"author", "equals", "bob"}})
	if !ok {
		t.Fatal("expected predicate")
	}
	and, isAnd := expr.(clause.AndConditions)
	if !isAnd || len(and.Exprs) != 3 {
		t.Fatalf("expected AND of 3 conditions, got %#v", expr)
	}
	or, isOr := and.Exprs[0].(clause.OrConditions)
	if !isOr || len(or.Exprs) != len(ent.textColumns) {
		t.Errorf("full-text should OR over %d columns, got %#v", len(ent.textColumns), and.Exprs[0])
	}
}

func TestFieldAliases(t *testing.T) {
	ent := ransomwareEntity()
	for _, name := range []string{"date", "DetectionDate", "detectiondate", "group_name", "Group"} {
		if _, ok := ent.Field(name); !ok {
			t.Errorf("field %q not registered", name)
		}
	}
	if _, ok := ent.Field("title"); ok {
		t.Error("ransomware has no title field")
	}
}
