package rag

import (
	"reflect"
	"strings"
	"testing"

	"github.com/treeql/treeql/core"
)

func TestPlaceholderFields(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM t WHERE id in (?id)", []string{"id"}},
		{"SELECT * FROM t WHERE a in (?a) AND b in (?b)", []string{"a", "b"}},
		{"SELECT * FROM t WHERE a in (?a) OR a in (?a)", []string{"a"}},
		{"SELECT * FROM t", nil},
	}
	for _, tt := range tests {
		if got := placeholderFields(tt.sql); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("placeholderFields(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	sql := "SELECT * FROM shop.comment WHERE product_id in (?id)"
	got := substitutePlaceholders(sql, map[string]string{"id": "1,2,3"})
	want := "SELECT * FROM shop.comment WHERE product_id in (1,2,3)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// Unknown placeholders stay untouched.
	got = substitutePlaceholders("WHERE x in (?missing)", map[string]string{"id": "1"})
	if got != "WHERE x in (?missing)" {
		t.Fatalf("got %q", got)
	}
}

func TestJoinColumnValues(t *testing.T) {
	rows := []core.Row{
		{"id": int64(1)},
		{"id": int64(2)},
		{"id": nil},
	}
	if got := joinColumnValues(rows, "id"); got != "1,2," {
		t.Fatalf("got %q", got)
	}
}

func TestScanColumns(t *testing.T) {
	subs := map[string]SubQuery{
		"@comments": {Title: "Comments", SQL: "WHERE product_id in (?id) AND owner in (?owner)"},
	}

	// Placeholder fields join the projection implicitly, deduplicated.
	got := scanColumns([]string{"id", "name"}, subs)
	if !reflect.DeepEqual(got, []string{"id", "name", "owner"}) {
		t.Fatalf("columns = %v", got)
	}

	got = scanColumns([]string{"id"}, nil)
	if !reflect.DeepEqual(got, []string{"id"}) {
		t.Fatalf("columns = %v", got)
	}
}

func TestRenderDocument(t *testing.T) {
	row := core.Row{
		"id":    int64(9),
		"name":  "widget",
		"price": "19.99",
	}
	subs := map[string]SubQuery{
		"@comments": {
			Title: "Comments",
			SQL:   "SELECT id, content FROM shop.comment WHERE id in (?id)",
		},
	}
	buckets := map[string][]core.Row{
		"@comments/id/9": {
			{"id": int64(9), "content": "great"},
			{"id": int64(9), "content": "works"},
		},
	}

	got := renderDocument(row, subs, buckets)

	want := strings.Join([]string{
		"id: 9",
		"name: widget",
		"price: 19.99",
		"Comments:",
		" - content: great id: 9",
		" - content: works id: 9",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("document =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderDocumentNoSubMatches(t *testing.T) {
	row := core.Row{"id": int64(1)}
	subs := map[string]SubQuery{
		"@comments": {Title: "Comments", SQL: "WHERE id in (?id)"},
	}

	got := renderDocument(row, subs, nil)
	if strings.Contains(got, "Comments") {
		t.Fatalf("empty section must be omitted: %q", got)
	}
	if got != "id: 1\n" {
		t.Fatalf("document = %q", got)
	}
}
