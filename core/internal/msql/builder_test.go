package msql

import (
	"reflect"
	"testing"
)

type fakeCatalog map[string]bool

func (f fakeCatalog) GetTableName(schema, table string) (string, string, bool) {
	if f[schema+"."+table] {
		return schema, table, true
	}
	return "", "", false
}

var cat = fakeCatalog{
	"shop.order": true,
	"shop.user":  true,
}

func TestParseTable(t *testing.T) {
	b := New()
	if err := b.ParseTable("shop.order", cat); err != nil {
		t.Fatalf("parse table: %v", err)
	}
	if got := b.ToSQL(); got != "SELECT * FROM shop.order LIMIT 1 OFFSET 0" {
		t.Fatalf("unexpected sql: %s", got)
	}
}

func TestParseTableListSuffix(t *testing.T) {
	b := New()
	if err := b.ParseTable("shop.user[]", cat); err != nil {
		t.Fatalf("parse table: %v", err)
	}
	if got := b.ToSQL(); got != "SELECT * FROM shop.user LIMIT 1 OFFSET 0" {
		t.Fatalf("unexpected sql: %s", got)
	}
}

func TestParseTableErrors(t *testing.T) {
	for _, key := range []string{"order", ".order", "shop.", "shop.missing"} {
		b := New()
		err := b.ParseTable(key, cat)
		if _, ok := err.(*UnknownTableError); !ok {
			t.Fatalf("ParseTable(%q) = %v, want UnknownTableError", key, err)
		}
	}
}

func TestParseCondition(t *testing.T) {
	b := New()
	if err := b.ParseTable("shop.order", cat); err != nil {
		t.Fatal(err)
	}
	b.ParseCondition("@column", "id, status")
	b.ParseCondition("@order", "id desc")
	b.ParseCondition("status", float64(2))
	b.ParseCondition("title$", "%phone%")
	b.ParseCondition("user_id", []any{float64(1), float64(2)})
	b.PageSize(float64(1), float64(5))

	want := "SELECT id,status FROM shop.order WHERE status=? AND title LIKE ? AND user_id in (?,?) ORDER BY id desc LIMIT 5 OFFSET 5"
	if got := b.ToSQL(); got != want {
		t.Fatalf("sql = %s\nwant %s", got, want)
	}

	params := b.Params()
	wantParams := []any{"2", "%phone%", "1", "2"}
	if !reflect.DeepEqual(params, wantParams) {
		t.Fatalf("params = %v, want %v", params, wantParams)
	}
}

func TestAddColumn(t *testing.T) {
	b := New()
	b.AddColumn("id") // projection empty: stays SELECT *
	if len(b.columns) != 0 {
		t.Fatal("AddColumn on empty projection must be a no-op")
	}

	b.ParseCondition("@column", "name")
	b.AddColumn("id")
	b.AddColumn("id")
	if !reflect.DeepEqual(b.columns, []string{"name", "id"}) {
		t.Fatalf("columns = %v", b.columns)
	}
}

func TestPageSizeDefaults(t *testing.T) {
	b := New()
	b.PageSize(nil, nil)
	if b.page != 0 || b.limit != DefaultMaxCount {
		t.Fatalf("page=%d limit=%d, want 0/%d", b.page, b.limit, DefaultMaxCount)
	}
}

func TestParamString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"s", "s"},
		{float64(3), "3"},
		{float64(3.5), "3.5"},
		{[]any{float64(1), "a"}, `[1,"a"]`},
		{map[string]any{"k": true}, `{"k":true}`},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := paramString(tt.in); got != tt.want {
			t.Fatalf("paramString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
