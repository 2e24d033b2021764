package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// CreateTableSQL renders a CREATE TABLE statement from table metadata.
// Columns come out in sorted field order; the primary key, unique keys
// and plain indexes are derived from each column's Key marker.
func CreateTableSQL(t Table) string {
	fields := make([]string, 0, len(t.Columns))
	for f := range t.Columns {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var defs []string
	var primary, unique, index []string

	for _, f := range fields {
		c := t.Columns[f]
		var sb strings.Builder
		fmt.Fprintf(&sb, "`%s` %s", c.Field, c.Type)
		if strings.EqualFold(c.Null, "NO") {
			sb.WriteString(" NOT NULL")
		}
		if c.Default != nil {
			fmt.Fprintf(&sb, " DEFAULT '%s'", *c.Default)
		}
		if strings.Contains(strings.ToLower(c.Extra), "auto_increment") {
			sb.WriteString(" AUTO_INCREMENT")
		}
		if c.Comment != "" {
			fmt.Fprintf(&sb, " COMMENT '%s'", escapeSQLString(c.Comment))
		}
		defs = append(defs, sb.String())

		switch strings.ToUpper(c.Key) {
		case "PRI":
			primary = append(primary, "`"+c.Field+"`")
		case "UNI":
			unique = append(unique, c.Field)
		case "MUL":
			index = append(index, c.Field)
		}
	}

	if len(primary) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(primary, ",")+")")
	}
	for _, f := range unique {
		defs = append(defs, fmt.Sprintf("UNIQUE KEY `uk_%s` (`%s`)", f, f))
	}
	for _, f := range index {
		defs = append(defs, fmt.Sprintf("KEY `idx_%s` (`%s`)", f, f))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s.%s (\n  %s\n)",
		t.Schema, strings.ToLower(t.Name), strings.Join(defs, ",\n  "))
	sb.WriteString(" ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
	if t.Comment != "" {
		fmt.Fprintf(&sb, " COMMENT='%s'", escapeSQLString(t.Comment))
	}
	return sb.String()
}

// CreateTable issues the DDL and, on success, registers the table in
// the catalog so it is usable without a restart.
func (g *Gateway) CreateTable(ctx context.Context, t Table) error {
	if t.Schema == "" || t.Name == "" {
		return &BadRequestError{Msg: "create table: schema and name required"}
	}
	if len(t.Columns) == 0 {
		return &BadRequestError{Msg: "create table: no columns"}
	}
	query := CreateTableSQL(t)
	g.log.Infow("sql.ddl", "query", query)
	if err := g.db.CreateTable(ctx, query); err != nil {
		return err
	}
	g.schema.addTable(t)
	return nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
