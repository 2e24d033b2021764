package rag

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/treeql/treeql/core"
)

// PageSize is the main-table scan window.
const PageSize = 1000

// placeholderRe matches "?field" references inside sub-query SQL.
var placeholderRe = regexp.MustCompile(`\?(\w+)`)

// ETL scans manifest tables, renders rows into documents, embeds the
// chunks and writes them to the vector store.
type ETL struct {
	run   core.Runner
	store *VectorStore
	embed *Embedder
	log   *zap.SugaredLogger

	nextID atomic.Uint64
}

// NewETL wires the pipeline.
func NewETL(run core.Runner, store *VectorStore, embed *Embedder, log *zap.SugaredLogger) *ETL {
	return &ETL{run: run, store: store, embed: embed, log: log}
}

// Run rebuilds every collection in the manifest. Collections run in
// parallel; a failed collection fails the run, a failed page only logs
// and skips.
func (e *ETL) Run(ctx context.Context, m Manifest) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, sources := range m {
		name, sources := name, sources
		g.Go(func() error {
			return e.runCollection(ctx, name, sources)
		})
	}
	return g.Wait()
}

func (e *ETL) runCollection(ctx context.Context, collection string, sources map[string]Source) error {
	if err := e.store.DeleteCollection(ctx, collection); err != nil {
		return err
	}
	created := false

	for srcType, src := range sources {
		if srcType != "mysql" {
			e.log.Warnf("rag: collection %s: source type %s not supported", collection, srcType)
			continue
		}
		normal, subs := src.Columns()
		if len(normal) == 0 {
			e.log.Errorf("rag: collection %s: column list empty", collection)
			continue
		}
		projection := strings.Join(scanColumns(normal, subs), ", ")

		table := src.Database + "." + src.Table
		total, err := e.run.Count(ctx, "SELECT count(1) FROM "+table)
		if err != nil {
			return fmt.Errorf("rag: count %s: %w", table, err)
		}
		e.log.Infof("rag: collection %s: %d rows in %s", collection, total, table)

		for offset := int64(0); offset < total; offset += PageSize {
			query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d OFFSET %d", projection, table, PageSize, offset)
			rows, err := e.run.QueryList(ctx, query)
			if err != nil {
				e.log.Errorw("rag: page skipped", "query", query, "err", err)
				continue
			}
			if len(rows) == 0 {
				continue
			}

			buckets := e.loadSubData(ctx, subs, rows)
			points := e.buildPoints(srcType, src, subs, rows, buckets)
			if len(points) == 0 {
				continue
			}

			vectors, err := e.embedPoints(ctx, points)
			if err != nil {
				e.log.Errorw("rag: page skipped", "collection", collection, "err", err)
				continue
			}
			for i := range points {
				points[i].Vector = vectors[i]
			}

			if !created {
				if err := e.store.EnsureCollection(ctx, collection, len(vectors[0])); err != nil {
					return err
				}
				created = true
			}
			if err := e.store.UpsertPoints(ctx, collection, points); err != nil {
				e.log.Errorw("rag: page skipped", "collection", collection, "err", err)
			}
		}
	}
	return nil
}

// scanColumns is the main-scan projection: the plain columns plus any
// placeholder fields the sub-queries bind, added implicitly.
func scanColumns(normal []string, subs map[string]SubQuery) []string {
	cols := append([]string(nil), normal...)
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		seen[c] = struct{}{}
	}
	for _, subName := range sortedSubNames(subs) {
		for _, field := range placeholderFields(subs[subName].SQL) {
			if _, dup := seen[field]; dup {
				continue
			}
			seen[field] = struct{}{}
			cols = append(cols, field)
		}
	}
	return cols
}

// loadSubData runs every sub-query for the page and buckets its rows
// under "sub/field/value".
func (e *ETL) loadSubData(ctx context.Context, subs map[string]SubQuery, rows []core.Row) map[string][]core.Row {
	buckets := make(map[string][]core.Row)

	for _, subName := range sortedSubNames(subs) {
		sub := subs[subName]
		fields := placeholderFields(sub.SQL)

		values := make(map[string]string, len(fields))
		for _, field := range fields {
			values[field] = joinColumnValues(rows, field)
		}
		query := substitutePlaceholders(sub.SQL, values)

		subRows, err := e.run.QueryList(ctx, query)
		if err != nil {
			e.log.Errorw("rag: sub-query skipped", "query", query, "err", err)
			continue
		}
		for _, field := range fields {
			for _, sr := range subRows {
				key := subName + "/" + field + "/" + plainValue(sr[field])
				buckets[key] = append(buckets[key], sr)
			}
		}
	}
	return buckets
}

// buildPoints renders each row into a document, splits it and attaches
// the payload metadata.
func (e *ETL) buildPoints(srcType string, src Source, subs map[string]SubQuery, rows []core.Row, buckets map[string][]core.Row) []Point {
	var points []Point
	for _, row := range rows {
		text := renderDocument(row, subs, buckets)

		payload := map[string]any{"src_type": srcType}
		for metaKey, col := range src.Metadata {
			payload[metaKey] = row[col]
		}

		for _, chunk := range SplitText(text, DefaultChunkSize, DefaultChunkOverlap) {
			p := map[string]any{"text": chunk}
			for k, v := range payload {
				p[k] = v
			}
			points = append(points, Point{ID: e.nextID.Add(1), Payload: p})
		}
	}
	return points
}

func (e *ETL) embedPoints(ctx context.Context, points []Point) ([][]float32, error) {
	texts := make([]string, len(points))
	for i, p := range points {
		texts[i], _ = p.Payload["text"].(string)
	}
	return e.embed.Embed(ctx, texts)
}

// renderDocument writes the row as "key: value" lines followed by one
// titled section per sub-query with its matching rows as " - k: v"
// items.
func renderDocument(row core.Row, subs map[string]SubQuery, buckets map[string][]core.Row) string {
	var sb strings.Builder

	for _, key := range sortedRowKeys(row) {
		fmt.Fprintf(&sb, "%s: %s\n", key, plainValue(row[key]))
	}

	for _, subName := range sortedSubNames(subs) {
		sub := subs[subName]
		var matched []core.Row
		for _, field := range placeholderFields(sub.SQL) {
			key := subName + "/" + field + "/" + plainValue(row[field])
			matched = append(matched, buckets[key]...)
		}
		if len(matched) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "%s:\n", sub.Title)
		for _, sr := range matched {
			sb.WriteString(" -")
			for _, k := range sortedRowKeys(sr) {
				fmt.Fprintf(&sb, " %s: %s", k, plainValue(sr[k]))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// placeholderFields returns the "?field" names in order of first
// appearance, deduplicated.
func placeholderFields(sql string) []string {
	var fields []string
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(sql, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		fields = append(fields, m[1])
	}
	return fields
}

// substitutePlaceholders replaces each "?field" with its joined value
// list.
func substitutePlaceholders(sql string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(sql, func(m string) string {
		if v, ok := values[m[1:]]; ok {
			return v
		}
		return m
	})
}

// joinColumnValues comma-joins the column's values across the page.
func joinColumnValues(rows []core.Row, field string) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, plainValue(row[field]))
	}
	return strings.Join(parts, ",")
}

func plainValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func sortedRowKeys(row core.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSubNames(subs map[string]SubQuery) []string {
	names := make([]string, 0, len(subs))
	for n := range subs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
