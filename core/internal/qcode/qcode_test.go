package qcode

import (
	"errors"
	"testing"
)

func TestParseListWithDependent(t *testing.T) {
	root := map[string]any{
		"list[]": map[string]any{
			"page":  float64(0),
			"count": float64(10),
			"shop.User": map[string]any{
				"status": float64(1),
			},
			"shop.Order": map[string]any{
				"user_id@": "list[]/shop.User/id",
			},
		},
	}

	qc, err := Parse(root)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	user := qc.Nodes["list[]/shop.User"]
	if user == nil || !user.IsList {
		t.Fatalf("shop.User node = %+v, want list node", user)
	}
	if user.Weight != PrimaryWeight+RelatedUnit {
		t.Fatalf("user weight = %d, want %d", user.Weight, PrimaryWeight+RelatedUnit)
	}
	if user.Attributes["status"] != float64(1) {
		t.Fatalf("user attrs = %v", user.Attributes)
	}

	order := qc.Nodes["list[]/shop.Order"]
	if order == nil || !order.IsList {
		t.Fatalf("shop.Order node = %+v, want list node", order)
	}
	if order.Weight >= PrimaryWeight {
		t.Fatalf("order weight = %d, must stay below primary", order.Weight)
	}

	// One layer at depth 2, primary before dependent.
	if len(qc.Layers) != 1 || qc.Layers[0].Depth != 2 {
		t.Fatalf("layers = %+v", qc.Layers)
	}
	nodes := qc.Layers[0].Nodes
	if nodes[0].Path != "list[]/shop.User" || nodes[1].Path != "list[]/shop.Order" {
		t.Fatalf("layer order = %s, %s", nodes[0].Path, nodes[1].Path)
	}

	if got := qc.SlaveRelateKV["list[]/shop.Order"]["user_id"]; got != "list[]/shop.User/id" {
		t.Fatalf("slave relate = %q", got)
	}
	if got := qc.PrimaryRelateKV["list[]/shop.User"]["id"]; got != "list[]/shop.Order/user_id" {
		t.Fatalf("primary relate = %q", got)
	}
	if _, ok := qc.PrimaryRelatedValues["list[]/shop.User/id"]; !ok {
		t.Fatal("captured slot missing")
	}

	ns := qc.NamespaceNode["list[]"]
	if ns["page"] != float64(0) || ns["count"] != float64(10) {
		t.Fatalf("namespace attrs = %v", ns)
	}
}

func TestParseSingularRoot(t *testing.T) {
	qc, err := Parse(map[string]any{
		"shop.User": map[string]any{"id": float64(7)},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := qc.Nodes["shop.User"]
	if n == nil || n.IsList {
		t.Fatalf("node = %+v, want singular", n)
	}
	if n.Weight != PrimaryWeight {
		t.Fatalf("weight = %d", n.Weight)
	}
	if len(qc.Layers) != 1 || qc.Layers[0].Depth != 1 {
		t.Fatalf("layers = %+v", qc.Layers)
	}
}

func TestIDLinkFlipsList(t *testing.T) {
	qc, err := Parse(map[string]any{
		"list[]": map[string]any{
			"shop.Order": map[string]any{"status": float64(1)},
			"shop.User": map[string]any{
				"id@": "list[]/shop.Order/user_id",
			},
		},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	user := qc.Nodes["list[]/shop.User"]
	if user.IsList {
		t.Fatal("id link must make the dependent singular")
	}
}

func TestUnresolvedLink(t *testing.T) {
	_, err := Parse(map[string]any{
		"shop.Order": map[string]any{
			"user_id@": "shop.Missing/id",
		},
	})
	var ul *UnresolvedLinkError
	if !errors.As(err, &ul) {
		t.Fatalf("err = %v, want UnresolvedLinkError", err)
	}
}

func TestCircularLink(t *testing.T) {
	_, err := Parse(map[string]any{
		"shop.A": map[string]any{"b_id@": "shop.B/id"},
		"shop.B": map[string]any{"a_id@": "shop.A/id"},
	})
	var cl *CircularLinkError
	if !errors.As(err, &cl) {
		t.Fatalf("err = %v, want CircularLinkError", err)
	}
}

func TestFaninWeights(t *testing.T) {
	// Two dependents referencing the same primary: bonus is 10^2.
	qc, err := Parse(map[string]any{
		"list[]": map[string]any{
			"shop.User":    map[string]any{},
			"shop.Order":   map[string]any{"user_id@": "list[]/shop.User/id"},
			"shop.Address": map[string]any{"user_id@": "list[]/shop.User/id"},
		},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	user := qc.Nodes["list[]/shop.User"]
	if want := PrimaryWeight + RelatedUnit*RelatedUnit; user.Weight != want {
		t.Fatalf("user weight = %d, want %d", user.Weight, want)
	}
}

func TestPathHelpers(t *testing.T) {
	if got := ParentPath("a/b/c"); got != "a/b" {
		t.Fatalf("ParentPath = %q", got)
	}
	if got := ParentPath("a"); got != "" {
		t.Fatalf("ParentPath = %q", got)
	}
	if got := LastSegment("a/b/c"); got != "c" {
		t.Fatalf("LastSegment = %q", got)
	}
	if got := LastSegment("a"); got != "a" {
		t.Fatalf("LastSegment = %q", got)
	}
}
