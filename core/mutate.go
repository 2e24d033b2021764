package core

import (
	"context"
	"fmt"
	"strings"
)

// The write surface mirrors the read surface's batch shape: the body
// maps "schema.table" keys to one payload each, and every key is
// handled independently. The result carries one entry per key; any
// failed key flips the batch-level failed flag so the caller can
// answer 400 while still reporting the keys that succeeded.

// Insert adds one row per key. A snowflake id is assigned when the
// payload carries none; the result holds the row's id, or -1 when the
// statement failed.
func (g *Gateway) Insert(ctx context.Context, body map[string]any) (map[string]any, bool) {
	result := make(map[string]any, len(body))
	failed := false

	for _, key := range sortedMapKeysAny(body) {
		schema, table, err := g.splitKey(key)
		if err != nil {
			result[key] = err.Error()
			failed = true
			continue
		}
		row, ok := body[key].(map[string]any)
		if !ok {
			result[key] = fmt.Sprintf("%s's payload is not an object", key)
			failed = true
			continue
		}

		id, hasID := numericID(row["id"])
		if !hasID {
			id = g.ids.NextID()
			row["id"] = id
		}

		fields := sortedMapKeysAny(row)
		cols := make([]string, len(fields))
		ph := make([]string, len(fields))
		params := make([]any, len(fields))
		for i, f := range fields {
			cols[i] = "`" + f + "`"
			ph[i] = "?"
			params[i] = row[f]
		}

		query := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
			schema, table, strings.Join(cols, ","), strings.Join(ph, ","))
		g.log.Infow("sql.insert", "query", query)

		if _, err := g.db.Exec(ctx, query, params...); err != nil {
			g.log.Errorw("sql.insert failed", "key", key, "err", err)
			result[key] = int64(-1)
			failed = true
			continue
		}
		result[key] = id
	}
	return result, failed
}

// Update rewrites one row per key, addressed by its numeric id. The
// result holds the affected row count.
func (g *Gateway) Update(ctx context.Context, body map[string]any) (map[string]any, bool) {
	result := make(map[string]any, len(body))
	failed := false

	for _, key := range sortedMapKeysAny(body) {
		schema, table, err := g.splitKey(key)
		if err != nil {
			result[key] = err.Error()
			failed = true
			continue
		}
		row, ok := body[key].(map[string]any)
		if !ok {
			result[key] = fmt.Sprintf("%s's payload is not an object", key)
			failed = true
			continue
		}
		id, hasID := numericID(row["id"])
		if !hasID {
			result[key] = fmt.Sprintf("%s's id is required", key)
			failed = true
			continue
		}

		var sets []string
		var params []any
		for _, f := range sortedMapKeysAny(row) {
			if f == "id" {
				continue
			}
			sets = append(sets, "`"+f+"`=?")
			params = append(params, row[f])
		}
		if len(sets) == 0 {
			result[key] = fmt.Sprintf("%s's payload has no fields", key)
			failed = true
			continue
		}
		params = append(params, id)

		query := fmt.Sprintf("UPDATE %s.%s SET %s WHERE id=?",
			schema, table, strings.Join(sets, ","))
		g.log.Infow("sql.update", "query", query)

		n, err := g.db.Exec(ctx, query, params...)
		if err != nil {
			g.log.Errorw("sql.update failed", "key", key, "err", err)
			result[key] = int64(-1)
			failed = true
			continue
		}
		result[key] = n
	}
	return result, failed
}

// Delete removes rows per key, addressed by a scalar "id" or an
// "id{}" array. The result holds the affected row count.
func (g *Gateway) Delete(ctx context.Context, body map[string]any) (map[string]any, bool) {
	result := make(map[string]any, len(body))
	failed := false

	for _, key := range sortedMapKeysAny(body) {
		schema, table, err := g.splitKey(key)
		if err != nil {
			result[key] = err.Error()
			failed = true
			continue
		}
		row, ok := body[key].(map[string]any)
		if !ok {
			result[key] = fmt.Sprintf("%s's payload is not an object", key)
			failed = true
			continue
		}

		var query string
		var params []any
		switch {
		case row["id"] != nil:
			query = fmt.Sprintf("DELETE FROM %s.%s WHERE id=?", schema, table)
			params = []any{row["id"]}
		case row["id{}"] != nil:
			ids, ok := row["id{}"].([]any)
			if !ok || len(ids) == 0 {
				result[key] = fmt.Sprintf("%s's id{} is not a list", key)
				failed = true
				continue
			}
			ph := make([]string, len(ids))
			for i := range ph {
				ph[i] = "?"
			}
			query = fmt.Sprintf("DELETE FROM %s.%s WHERE id in (%s)",
				schema, table, strings.Join(ph, ","))
			params = ids
		default:
			result[key] = fmt.Sprintf("%s's id is required", key)
			failed = true
			continue
		}

		g.log.Infow("sql.delete", "query", query)
		n, err := g.db.Exec(ctx, query, params...)
		if err != nil {
			g.log.Errorw("sql.delete failed", "key", key, "err", err)
			result[key] = int64(-1)
			failed = true
			continue
		}
		result[key] = n
	}
	return result, failed
}

// CountRows counts rows per key under the payload's equality filters.
func (g *Gateway) CountRows(ctx context.Context, body map[string]any) (map[string]any, bool) {
	result := make(map[string]any, len(body))
	failed := false

	for _, key := range sortedMapKeysAny(body) {
		schema, table, err := g.splitKey(key)
		if err != nil {
			result[key] = err.Error()
			failed = true
			continue
		}
		filters, _ := body[key].(map[string]any)

		var where []string
		var params []any
		for _, f := range sortedMapKeysAny(filters) {
			where = append(where, "`"+f+"`=?")
			params = append(params, filters[f])
		}

		query := fmt.Sprintf("SELECT count(1) FROM %s.%s", schema, table)
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}

		n, err := g.db.Count(ctx, query, params...)
		if err != nil {
			g.log.Errorw("sql.count failed", "key", key, "err", err)
			result[key] = int64(-1)
			failed = true
			continue
		}
		result[key] = n
	}
	return result, failed
}

// splitKey validates a "schema.table" key against the catalog.
func (g *Gateway) splitKey(key string) (string, string, error) {
	schema, table, ok := strings.Cut(key, ".")
	if !ok || schema == "" {
		return "", "", fmt.Errorf("%s's schema empty", key)
	}
	if table == "" {
		return "", "", fmt.Errorf("%s's table empty", key)
	}
	table = strings.ToLower(table)
	if !g.schema.HasTable(schema, table) {
		return "", "", fmt.Errorf("table: %s.%s not exists", schema, table)
	}
	return schema, table, nil
}

// numericID extracts an integral id from a decoded JSON value.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
