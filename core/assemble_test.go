package core

import (
	"reflect"
	"testing"
)

func TestComposeNested(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "flat keys pass through",
			in:   map[string]any{"a": 1, "b": "x"},
			want: map[string]any{"a": 1, "b": "x"},
		},
		{
			name: "two level",
			in:   map[string]any{"a/b": 1},
			want: map[string]any{"a": map[string]any{"b": 1}},
		},
		{
			name: "siblings merge",
			in:   map[string]any{"a/b": 1, "a/c": 2},
			want: map[string]any{"a": map[string]any{"b": 1, "c": 2}},
		},
		{
			name: "deep path",
			in:   map[string]any{"a/b/c": 1},
			want: map[string]any{
				"a": map[string]any{"b": map[string]any{"c": 1}},
			},
		},
		{
			name: "array segment",
			in:   map[string]any{"a/[]/b": 1},
			want: map[string]any{
				"a": []any{map[string]any{"b": 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeNested(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ComposeNested(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComposeNestedIdempotent(t *testing.T) {
	in := map[string]any{"a/b": 1, "c": 2}
	once := ComposeNested(in)
	twice := ComposeNested(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second pass changed the value: %#v vs %#v", once, twice)
	}
}

func TestRelativeNodePath(t *testing.T) {
	tests := []struct {
		path, namespace, want string
	}{
		{"list[]/shop.Order", "list[]", "shop.Order"},
		{"a[]/b[]/shop.Item", "a[]", "b[]/shop.Item"},
		{"shop.Order", "", "shop.Order"},
		{"other[]/shop.Order", "list[]", "other[]/shop.Order"},
	}
	for _, tt := range tests {
		if got := relativeNodePath(tt.path, tt.namespace); got != tt.want {
			t.Fatalf("relativeNodePath(%q, %q) = %q, want %q",
				tt.path, tt.namespace, got, tt.want)
		}
	}
}
