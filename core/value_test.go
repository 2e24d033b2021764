package core

import (
	"reflect"
	"testing"
)

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		raw      []byte
		want     any
	}{
		{"bigint", "BIGINT", []byte("9007199254740993"), int64(9007199254740993)},
		{"int", "INT", []byte("-42"), int64(-42)},
		{"unsigned int", "UNSIGNED INT", []byte("42"), int64(42)},
		{"tinyint", "TINYINT", []byte("1"), int64(1)},
		{"datetime", "DATETIME", []byte("2024-05-01 10:30:00"), "2024-05-01 10:30:00"},
		{"date", "DATE", []byte("2024-05-01"), "2024-05-01"},
		{"varchar", "VARCHAR", []byte("hello"), "hello"},
		{"text", "TEXT", []byte("body"), "body"},
		{"json object", "JSON", []byte(`{"a":1}`), map[string]any{"a": float64(1)}},
		{"json array", "JSON", []byte(`[1,2]`), []any{float64(1), float64(2)}},
		{"blob utf8", "BLOB", []byte("plain text"), "plain text"},
		{"blob binary", "BLOB", []byte{0xff, 0xfe, 0x00}, "//4A"},
		{"decimal", "DECIMAL", []byte("12.3400"), "12.3400"},
		{"double", "DOUBLE", []byte("3.5"), 3.5},
		{"float", "FLOAT", []byte("0.25"), 0.25},
		{"null", "VARCHAR", nil, nil},
		{"unknown type", "GEOMETRY", []byte("x"), "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeValue(tt.typeName, tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("decodeValue(%s, %q) = %#v, want %#v",
					tt.typeName, tt.raw, got, tt.want)
			}
		})
	}
}

func TestBaseTypeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"VARCHAR(255)", "VARCHAR"},
		{"UNSIGNED BIGINT", "BIGINT"},
		{"decimal(10,2)", "DECIMAL"},
		{"INT", "INT"},
	}
	for _, tt := range tests {
		if got := baseTypeName(tt.in); got != tt.want {
			t.Fatalf("baseTypeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
