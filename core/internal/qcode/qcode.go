// Package qcode parses a tree-shaped read request into an ordered
// query plan. Entity keys ("schema.Table", optionally "[]"-suffixed)
// become query nodes; "field@" entries carrying slash-delimited paths
// become links between nodes. Nodes are grouped by tree depth and
// weighted so primaries always run before the dependents that consume
// their result columns.
package qcode

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// PrimaryWeight is the base weight of a node with no outgoing link.
	PrimaryWeight = 10000
	// RelatedUnit is the per-fan-in weight multiplier.
	RelatedUnit = 10
)

// UnresolvedLinkError is returned when a link path points at an
// entity that is not part of the request.
type UnresolvedLinkError struct {
	Node string
	Path string
}

func (e *UnresolvedLinkError) Error() string {
	return fmt.Sprintf("node %s links to unknown entity path %s", e.Node, e.Path)
}

// CircularLinkError is returned when link dependencies form a cycle.
type CircularLinkError struct {
	Node string
}

func (e *CircularLinkError) Error() string {
	return fmt.Sprintf("circular link involving node %s", e.Node)
}

// QueryNode is one planned entity query.
type QueryNode struct {
	Name       string
	Path       string
	IsList     bool
	Attributes map[string]any
	Weight     int
}

// QueryContext is the parsed plan plus the result stores the executor
// fills in while running it.
type QueryContext struct {
	// Layers maps tree depth to the nodes at that depth, each layer
	// sorted by descending weight.
	Layers []Layer
	// Nodes indexes every query node by its slash-joined path.
	Nodes map[string]*QueryNode
	// NamespaceNode holds the scalar attributes of "[]" container keys.
	NamespaceNode map[string]map[string]any

	// PrimaryRelateKV: primary path -> primary field -> dependent field path.
	PrimaryRelateKV map[string]map[string]string
	// SlaveRelateKV: dependent path -> dependent field -> primary field path.
	SlaveRelateKV map[string]map[string]string

	// PrimaryRelatedValues: primary field path -> captured value.
	// nil until resolved; scalar for singular primaries, []any for lists.
	PrimaryRelatedValues map[string]any

	// PrimaryNodeData: primary path -> result rows.
	PrimaryNodeData map[string][]map[string]any
	// SlaveRelateData: dependent path -> "field/value" -> bucketed rows.
	SlaveRelateData map[string]map[string][]map[string]any
}

// Layer is one depth level of the plan.
type Layer struct {
	Depth int
	Nodes []*QueryNode
}

type queueItem struct {
	parentPath string
	name       string
	value      map[string]any
	depth      int
}

// Parse walks the request tree breadth-first and builds the plan.
func Parse(root map[string]any) (*QueryContext, error) {
	qc := &QueryContext{
		Nodes:                make(map[string]*QueryNode),
		NamespaceNode:        make(map[string]map[string]any),
		PrimaryRelateKV:      make(map[string]map[string]string),
		SlaveRelateKV:        make(map[string]map[string]string),
		PrimaryRelatedValues: make(map[string]any),
		PrimaryNodeData:      make(map[string][]map[string]any),
		SlaveRelateData:      make(map[string]map[string][]map[string]any),
	}

	layers := make(map[int][]*QueryNode)
	var queue []queueItem

	for _, key := range sortedKeys(root) {
		val, _ := root[key].(map[string]any)
		if strings.HasSuffix(key, "[]") {
			qc.NamespaceNode[key] = scalarAttrs(val)
			for _, k := range sortedKeys(val) {
				if child, ok := val[k].(map[string]any); ok {
					queue = append(queue, queueItem{key, k, child, 2})
				}
			}
		} else if val != nil {
			queue = append(queue, queueItem{"", key, val, 1})
		}
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		path := item.name
		if item.parentPath != "" {
			path = item.parentPath + "/" + item.name
		}

		if strings.HasSuffix(item.name, "[]") {
			qc.NamespaceNode[path] = scalarAttrs(item.value)
			for _, k := range sortedKeys(item.value) {
				if child, ok := item.value[k].(map[string]any); ok {
					queue = append(queue, queueItem{path, k, child, item.depth + 1})
				}
			}
			continue
		}

		node := &QueryNode{
			Name:       item.name,
			Path:       path,
			IsList:     strings.HasSuffix(item.parentPath, "[]"),
			Attributes: make(map[string]any),
		}

		for _, fieldKey := range sortedKeys(item.value) {
			fieldVal := item.value[fieldKey]
			if !isScalar(fieldVal) {
				continue
			}
			if !strings.HasSuffix(fieldKey, "@") {
				node.Attributes[fieldKey] = fieldVal
				continue
			}

			// Link entry: value is a path into another entity's columns.
			field := fieldKey[:len(fieldKey)-1]
			if field == "id" {
				// id is unique, a single-valued dependency cannot be a list.
				node.IsList = false
			}
			target, ok := fieldVal.(string)
			if !ok {
				continue
			}
			fieldPath := path + "/" + field

			if qc.SlaveRelateKV[path] == nil {
				qc.SlaveRelateKV[path] = make(map[string]string)
			}
			qc.SlaveRelateKV[path][field] = target
			qc.PrimaryRelatedValues[target] = nil

			primaryPath, primaryField := splitFieldPath(target)
			if qc.PrimaryRelateKV[primaryPath] == nil {
				qc.PrimaryRelateKV[primaryPath] = make(map[string]string)
			}
			qc.PrimaryRelateKV[primaryPath][primaryField] = fieldPath
		}

		layers[item.depth] = append(layers[item.depth], node)
		qc.Nodes[path] = node
	}

	if err := qc.checkLinks(); err != nil {
		return nil, err
	}
	qc.computeWeights(layers)
	qc.buildLayers(layers)
	return qc, nil
}

// checkLinks validates that every link resolves to a known node and
// that the dependency graph carries no cycle.
func (qc *QueryContext) checkLinks() error {
	edges := make(map[string][]string)
	for nodePath, relate := range qc.SlaveRelateKV {
		for _, target := range relate {
			primaryPath, _ := splitFieldPath(target)
			if _, ok := qc.Nodes[primaryPath]; !ok {
				return &UnresolvedLinkError{Node: nodePath, Path: target}
			}
			edges[nodePath] = append(edges[nodePath], primaryPath)
		}
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)

	var visit func(string) error
	visit = func(n string) error {
		switch state[n] {
		case visiting:
			return &CircularLinkError{Node: n}
		case done:
			return nil
		}
		state[n] = visiting
		for _, m := range edges[n] {
			if err := visit(m); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}

	for n := range edges {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// computeWeights assigns PrimaryWeight to link-free nodes and layers
// a RelatedUnit^fanin bonus onto every referenced node.
func (qc *QueryContext) computeWeights(layers map[int][]*QueryNode) {
	fanin := make(map[string]int)
	for _, relate := range qc.SlaveRelateKV {
		for _, target := range relate {
			primaryPath, _ := splitFieldPath(target)
			fanin[primaryPath]++
		}
	}

	for _, nodes := range layers {
		for _, n := range nodes {
			addition := 0
			if c := fanin[n.Path]; c > 0 {
				addition = pow(RelatedUnit, c)
			}
			if _, dependent := qc.SlaveRelateKV[n.Path]; dependent {
				n.Weight = addition
			} else {
				n.Weight = PrimaryWeight + addition
			}
		}
	}
}

// buildLayers orders layers by ascending depth and nodes within a
// layer by descending weight (ties broken by path for determinism).
func (qc *QueryContext) buildLayers(layers map[int][]*QueryNode) {
	depths := make([]int, 0, len(layers))
	for d := range layers {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	for _, d := range depths {
		nodes := layers[d]
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].Weight != nodes[j].Weight {
				return nodes[i].Weight > nodes[j].Weight
			}
			return nodes[i].Path < nodes[j].Path
		})
		qc.Layers = append(qc.Layers, Layer{Depth: d, Nodes: nodes})
	}
}

// ParentPath returns everything before the final path segment.
func ParentPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

// LastSegment returns the final path segment.
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func splitFieldPath(fieldPath string) (nodePath, field string) {
	return ParentPath(fieldPath), LastSegment(fieldPath)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool, int, int64, nil:
		return v != nil
	}
	return false
}

func scalarAttrs(m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		if isScalar(v) {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
