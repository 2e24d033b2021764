package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// System schemas are never exposed through the gateway.
var systemSchemas = map[string]struct{}{
	"information_schema": {},
	"mysql":              {},
	"performance_schema": {},
	"sys":                {},
}

// Database is a catalog entry for one schema on the server.
type Database struct {
	Name string  `json:"name"`
	Size float64 `json:"size"`
}

// Column mirrors one row of SHOW FULL COLUMNS.
type Column struct {
	Field   string  `json:"field"`
	Type    string  `json:"type_name"`
	Null    string  `json:"null"`
	Default *string `json:"default"`
	Comment string  `json:"comment"`
	Key     string  `json:"key"`
	Extra   string  `json:"extra"`
}

// Table is a schema-qualified table with its column metadata.
type Table struct {
	Schema  string            `json:"schema"`
	Name    string            `json:"name"`
	Columns map[string]Column `json:"columns"`
	Comment string            `json:"comment"`
}

// Schema is the process-wide catalog of databases, tables and columns.
// It is populated once at startup and read concurrently afterwards.
type Schema struct {
	mu        sync.RWMutex
	databases map[string]Database
	tables    map[string]Table // keyed "schema.table"
	dbTables  map[string][]string
}

// NewSchema returns an empty catalog. Use LoadSchema to populate it
// from a live connection.
func NewSchema() *Schema {
	return &Schema{
		databases: make(map[string]Database),
		tables:    make(map[string]Table),
		dbTables:  make(map[string][]string),
	}
}

const (
	listDatabasesStmt = `SELECT table_schema AS name,
	ROUND(SUM(data_length + index_length) / 1024 / 1024, 2) AS size
	FROM information_schema.tables GROUP BY table_schema`

	listTablesStmt = `SELECT TABLE_NAME, TABLE_COMMENT
	FROM information_schema.tables
	WHERE table_schema = ? AND table_type = 'BASE TABLE'`
)

// LoadSchema introspects every non-system database on the connection.
// Any failure aborts startup: lookups at steady state never fail.
func LoadSchema(ctx context.Context, db *DB, log *zap.SugaredLogger) (*Schema, error) {
	s := NewSchema()

	dbs, err := db.QueryList(ctx, listDatabasesStmt)
	if err != nil {
		return nil, fmt.Errorf("schema: list databases: %w", err)
	}

	for _, row := range dbs {
		name, _ := row["name"].(string)
		if _, ok := systemSchemas[name]; ok || name == "" {
			continue
		}
		s.databases[name] = Database{Name: name, Size: toFloat(row["size"])}
	}

	for name := range s.databases {
		if err := s.loadTables(ctx, db, name, log); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadTables loads the base tables of one schema along with their
// full column metadata.
func (s *Schema) loadTables(ctx context.Context, db *DB, schema string, log *zap.SugaredLogger) error {
	rows, err := db.QueryList(ctx, listTablesStmt, schema)
	if err != nil {
		return fmt.Errorf("schema: list tables of %s: %w", schema, err)
	}

	var names []string
	for _, row := range rows {
		name := strings.ToLower(toString(row["TABLE_NAME"]))
		if name == "" {
			continue
		}
		cols, err := loadColumns(ctx, db, schema, name)
		if err != nil {
			return err
		}
		t := Table{
			Schema:  schema,
			Name:    name,
			Columns: cols,
			Comment: toString(row["TABLE_COMMENT"]),
		}
		key := schema + "." + name
		s.tables[key] = t
		names = append(names, name)
		log.Infof("mysql.table: %s loaded", key)
	}
	s.dbTables[schema] = names
	return nil
}

// loadColumns runs SHOW FULL COLUMNS for one table. Type and Comment
// come back as byte columns and decode to UTF-8 strings.
func loadColumns(ctx context.Context, db *DB, schema, table string) (map[string]Column, error) {
	rows, err := db.QueryList(ctx, fmt.Sprintf("SHOW FULL COLUMNS FROM %s.%s", schema, table))
	if err != nil {
		return nil, fmt.Errorf("schema: columns of %s.%s: %w", schema, table, err)
	}

	cols := make(map[string]Column, len(rows))
	for _, row := range rows {
		c := Column{
			Field:   toString(row["Field"]),
			Type:    toString(row["Type"]),
			Null:    toString(row["Null"]),
			Comment: toString(row["Comment"]),
			Key:     toString(row["Key"]),
			Extra:   toString(row["Extra"]),
		}
		if d, ok := row["Default"]; ok && d != nil {
			dv := toString(d)
			c.Default = &dv
		}
		cols[c.Field] = c
	}
	return cols, nil
}

// HasTable reports whether schema.table exists in the catalog.
func (s *Schema) HasTable(schema, table string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[schema+"."+strings.ToLower(table)]
	return ok
}

// GetTable returns the table metadata, or false when absent.
func (s *Schema) GetTable(schema, table string) (Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[schema+"."+strings.ToLower(table)]
	return t, ok
}

// GetTableName resolves an entity reference to its canonical
// schema-qualified name. Satisfies msql.Catalog.
func (s *Schema) GetTableName(schema, table string) (string, string, bool) {
	t, ok := s.GetTable(schema, table)
	if !ok {
		return "", "", false
	}
	return t.Schema, t.Name, true
}

// ListTables maps table name to table comment for one schema.
func (s *Schema) ListTables(schema string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string)
	for _, name := range s.dbTables[schema] {
		if t, ok := s.tables[schema+"."+name]; ok {
			out[name] = t.Comment
		}
	}
	return out
}

// Databases returns the non-system databases seen at load time.
func (s *Schema) Databases() []Database {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Database, 0, len(s.databases))
	for _, d := range s.databases {
		out = append(out, d)
	}
	return out
}

// addTable registers a table directly. Used by tests and by the
// create-table path after a successful DDL round trip.
func (s *Schema) addTable(t Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.Schema + "." + strings.ToLower(t.Name)
	if _, ok := s.tables[key]; !ok {
		s.dbTables[t.Schema] = append(s.dbTables[t.Schema], strings.ToLower(t.Name))
	}
	s.tables[key] = t
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string:
		var f float64
		fmt.Sscanf(x, "%g", &f)
		return f
	default:
		return 0
	}
}
