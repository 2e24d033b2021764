// Package msql renders the per-entity SELECT statements the executor
// runs. One Builder accumulates projection, predicates, ordering and
// pagination for a single query node and emits parameterized MySQL.
package msql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMaxCount is the LIMIT applied to list queries that carry no
// explicit count.
const DefaultMaxCount = 10

// UnknownTableError is returned when an entity key does not resolve
// against the schema catalog.
type UnknownTableError struct {
	Key string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("table: %s not exists", e.Key)
}

// Catalog is the slice of the schema registry the builder needs.
type Catalog interface {
	GetTableName(schema, table string) (qualifiedSchema, qualifiedTable string, ok bool)
}

// Builder accumulates one SELECT statement.
type Builder struct {
	schema  string
	table   string
	columns []string
	where   []string
	params  []any
	order   string
	page    int
	limit   int
}

// New returns a builder with the singular default window of one row.
func New() *Builder {
	return &Builder{limit: 1}
}

// ParseTable resolves an entity key of the form "schema.Table" or
// "schema.Table[]" against the catalog.
func (b *Builder) ParseTable(key string, cat Catalog) error {
	name := strings.TrimSuffix(key, "[]")
	schema, table, ok := strings.Cut(name, ".")
	if !ok || schema == "" || table == "" {
		return &UnknownTableError{Key: key}
	}
	qs, qt, found := cat.GetTableName(schema, table)
	if !found {
		return &UnknownTableError{Key: key}
	}
	b.schema = qs
	b.table = qt
	return nil
}

// ParseCondition folds one request entry into the statement:
//
//	@order / @column  update builder state, other @ keys are ignored
//	field$            LIKE predicate
//	array value       IN predicate binding each element
//	anything else     equality predicate
func (b *Builder) ParseCondition(field string, value any) {
	if strings.HasPrefix(field, "@") {
		switch field[1:] {
		case "order":
			if s, ok := value.(string); ok {
				b.order = s
			}
		case "column":
			if s, ok := value.(string); ok {
				for _, c := range strings.Split(s, ",") {
					if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
						b.columns = append(b.columns, c)
					}
				}
			}
		}
		return
	}

	if strings.HasSuffix(field, "$") {
		b.where = append(b.where, field[:len(field)-1]+" LIKE ?")
		b.params = append(b.params, value)
		return
	}

	if arr, ok := value.([]any); ok {
		ph := make([]string, len(arr))
		for i := range ph {
			ph[i] = "?"
		}
		b.where = append(b.where, fmt.Sprintf("%s in (%s)", field, strings.Join(ph, ",")))
		b.params = append(b.params, arr...)
		return
	}

	b.where = append(b.where, field+"=?")
	b.params = append(b.params, value)
}

// AddColumn forces a column into the projection. A no-op when the
// projection is empty (SELECT *) or already carries the column.
func (b *Builder) AddColumn(col string) {
	if len(b.columns) == 0 {
		return
	}
	for _, c := range b.columns {
		if c == col {
			return
		}
	}
	b.columns = append(b.columns, col)
}

// PageSize sets the window, coercing numeric JSON values and falling
// back to page 0 with the default count.
func (b *Builder) PageSize(page, count any) {
	b.page = parseNum(page, 0)
	b.limit = parseNum(count, DefaultMaxCount)
}

func parseNum(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	return def
}

// ToSQL renders the accumulated statement.
func (b *Builder) ToSQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteByte('*')
	} else {
		sb.WriteString(strings.Join(b.columns, ","))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.schema)
	sb.WriteByte('.')
	sb.WriteString(b.table)

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.order)
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", b.limit, b.limit*b.page)
	}
	return sb.String()
}

// Params returns the bind parameters stringified the way the wire
// layer expects: NULL becomes "NULL", composites their JSON text.
func (b *Builder) Params() []any {
	out := make([]any, len(b.params))
	for i, p := range b.params {
		out[i] = paramString(p)
	}
	return out
}

func paramString(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []any, map[string]any:
		bts, err := json.Marshal(x)
		if err != nil {
			return "NULL"
		}
		return string(bts)
	case float64:
		// JSON numbers arrive as float64; keep integral values clean.
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
