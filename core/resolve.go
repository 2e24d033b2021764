package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/treeql/treeql/core/internal/msql"
	"github.com/treeql/treeql/core/internal/qcode"
)

// resolver drives one parsed request against the database. Nodes run
// in planner order: layers ascending, weights descending, so every
// dependent executes after the entity it references.
type resolver struct {
	qc  *qcode.QueryContext
	run Runner
	cat msql.Catalog
	log *zap.SugaredLogger
}

func (r *resolver) resolve(ctx context.Context) (map[string]any, error) {
	for _, layer := range r.qc.Layers {
		for _, node := range layer.Nodes {
			var err error
			if node.Weight >= qcode.PrimaryWeight {
				err = r.queryPrimary(ctx, node)
			} else {
				err = r.queryDependent(ctx, node)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return r.assemble(), nil
}

// queryPrimary executes a link-free node and captures the column
// values awaited by its dependents.
func (r *resolver) queryPrimary(ctx context.Context, node *qcode.QueryNode) error {
	b := msql.New()
	relate := r.qc.PrimaryRelateKV[node.Path]

	rows, err := r.queryNodeData(ctx, node, b, sortedMapKeys(relate))
	if err != nil {
		return err
	}
	r.qc.PrimaryNodeData[node.Path] = rows

	if node.IsList {
		for _, row := range rows {
			for col, v := range row {
				slot := node.Path + "/" + col
				cur, awaited := r.qc.PrimaryRelatedValues[slot]
				if !awaited {
					continue
				}
				arr, _ := cur.([]any)
				r.qc.PrimaryRelatedValues[slot] = append(arr, v)
			}
		}
		return nil
	}

	if len(rows) == 0 {
		return nil
	}
	for col, v := range rows[0] {
		slot := node.Path + "/" + col
		if _, awaited := r.qc.PrimaryRelatedValues[slot]; awaited {
			r.qc.PrimaryRelatedValues[slot] = v
		}
	}
	return nil
}

// queryDependent injects the captured primary values as filters,
// executes the node and buckets its rows by "field/value" for O(1)
// lookup during assembly.
func (r *resolver) queryDependent(ctx context.Context, node *qcode.QueryNode) error {
	b := msql.New()
	relate := r.qc.SlaveRelateKV[node.Path]

	for _, field := range sortedMapKeys(relate) {
		captured, ok := r.qc.PrimaryRelatedValues[relate[field]]
		if ok {
			if captured == nil {
				// Upstream produced nothing: this node's result set is empty.
				return nil
			}
			if arr, isArr := captured.([]any); isArr {
				b.PageSize(0, len(arr))
			}
			b.ParseCondition(field, captured)
		}
	}

	rows, err := r.queryNodeData(ctx, node, b, sortedMapKeys(relate))
	if err != nil {
		return err
	}

	buckets := r.qc.SlaveRelateData[node.Path]
	if buckets == nil {
		buckets = make(map[string][]map[string]any)
		r.qc.SlaveRelateData[node.Path] = buckets
	}
	for field := range relate {
		for _, row := range rows {
			key := field + "/" + pathValue(row[field])
			buckets[key] = append(buckets[key], row)
		}
	}
	return nil
}

// queryNodeData finishes the builder with the node's own attributes,
// the hoisted link columns and pagination, then runs it. Hoisting
// after the attributes keeps referenced fields in the projection even
// when a user @column leaves them out.
func (r *resolver) queryNodeData(ctx context.Context, node *qcode.QueryNode, b *msql.Builder, hoist []string) ([]Row, error) {
	if err := b.ParseTable(strings.ToLower(node.Name), r.cat); err != nil {
		return nil, &BadRequestError{Msg: err.Error()}
	}
	for _, key := range sortedMapKeysAny(node.Attributes) {
		b.ParseCondition(key, node.Attributes[key])
	}
	for _, col := range hoist {
		b.AddColumn(col)
	}

	// List nodes adopt the enclosing namespace's window.
	if node.IsList {
		attrs := r.qc.NamespaceNode[qcode.ParentPath(node.Path)]
		b.PageSize(attrs["page"], attrs["count"])
	}

	query := b.ToSQL()
	params := b.Params()
	r.log.Infow("sql.exec", "query", query, "params", params)
	return r.run.QueryList(ctx, query, params...)
}

// pathValue renders a row value the way it appears inside bucket and
// capture keys: JSON text, so strings stay distinguishable from
// numbers.
func pathValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMapKeysAny(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
