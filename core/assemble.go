package core

import (
	"sort"
	"strings"

	"github.com/treeql/treeql/core/internal/qcode"
)

// assemble folds the per-node result sets back into the caller's tree
// shape. Primaries anchor the response; every dependent slots its
// bucketed rows in at the relative path its link field named.
func (r *resolver) assemble() map[string]any {
	response := make(map[string]any)

	for _, path := range sortedDataPaths(r.qc.PrimaryNodeData) {
		node := r.qc.Nodes[path]
		rows := r.qc.PrimaryNodeData[path]
		namespace := qcode.ParentPath(path)
		relate := r.qc.PrimaryRelateKV[path]

		if node.IsList {
			list := make([]any, 0, len(rows))
			for _, row := range rows {
				list = append(list, r.buildPrimaryValue(namespace, node.Name, row, relate))
			}
			response[namespace] = list
			continue
		}

		row := Row{}
		if len(rows) > 0 {
			row = rows[0]
		}
		value := r.buildPrimaryValue(namespace, node.Name, row, relate)

		// Root-level singulars merge straight into the response.
		target := response
		if namespace != "" {
			existing, _ := response[namespace].(map[string]any)
			if existing == nil {
				existing = make(map[string]any)
				response[namespace] = existing
			}
			target = existing
		}
		for k, v := range value {
			target[k] = v
		}
	}
	return response
}

// buildPrimaryValue wraps one primary row under its entity name and
// attaches the dependent data keyed by this row's link values.
func (r *resolver) buildPrimaryValue(namespace, name string, row Row, relate map[string]string) map[string]any {
	out := map[string]any{name: row}

	for _, primaryField := range sortedMapKeys(relate) {
		slaveFieldPath := relate[primaryField]
		value := row[primaryField]
		bucketKey := qcode.LastSegment(slaveFieldPath) + "/" + pathValue(value)

		data := r.slaveNodeData(qcode.ParentPath(slaveFieldPath), bucketKey)
		if data == nil {
			// Unmatched singular dependent: the key is omitted.
			continue
		}
		relPath := relativeNodePath(qcode.ParentPath(slaveFieldPath), namespace)
		if strings.Contains(relPath, "/") {
			nested := ComposeNested(map[string]any{relPath: data})
			for k, v := range nested {
				out[k] = v
			}
		} else {
			out[relPath] = data
		}
	}
	return out
}

// slaveNodeData looks up the dependent rows bucketed under key. A list
// node yields the bucket as a slice; a singular node yields the first
// row, or nil when the bucket is empty.
func (r *resolver) slaveNodeData(slavePath, bucketKey string) any {
	node := r.qc.Nodes[slavePath]
	bucket := r.qc.SlaveRelateData[slavePath][bucketKey]

	if node != nil && node.IsList {
		list := make([]any, 0, len(bucket))
		for _, row := range bucket {
			list = append(list, row)
		}
		return list
	}
	if len(bucket) == 0 {
		r.log.Debugw("slave.data empty", "path", slavePath, "key", bucketKey)
		return nil
	}
	return bucket[0]
}

// relativeNodePath strips the enclosing namespace so the dependent
// lands relative to its primary.
func relativeNodePath(slavePath, namespace string) string {
	if rel, ok := strings.CutPrefix(slavePath, namespace+"/"); ok {
		return rel
	}
	return slavePath
}

// ComposeNested expands "a/b/c" style keys into nested objects. A "[]"
// segment turns its parent into an array. Keys without a slash pass
// through untouched, so applying it twice is a no-op.
func ComposeNested(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for _, key := range sortedMapKeysAny(flat) {
		value := flat[key]
		if !strings.Contains(key, "/") {
			out[key] = value
			continue
		}
		segments := strings.Split(key, "/")
		top := segments[0]
		out[top] = mergeNested(out[top], segments[1:], value)
	}
	return out
}

// mergeNested wraps value under the remaining segments, merging into
// existing when both sides are objects.
func mergeNested(existing any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}
	if segments[0] == "[]" {
		inner := mergeNested(nil, segments[1:], value)
		if arr, ok := existing.([]any); ok {
			return append(arr, inner)
		}
		return []any{inner}
	}

	obj, _ := existing.(map[string]any)
	if obj == nil {
		obj = make(map[string]any)
	}
	obj[segments[0]] = mergeNested(obj[segments[0]], segments[1:], value)
	return obj
}

func sortedDataPaths(m map[string][]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
