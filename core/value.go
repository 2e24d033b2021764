package core

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// decodeValue maps a raw column value to its generic JSON form. The
// driver hands text-protocol results back as bytes; the declared SQL
// type decides the target kind:
//
//	BIGINT, INT family      -> int64
//	DATETIME, DATE, TIME    -> string ("2006-01-02 15:04:05" style)
//	TEXT family, default    -> string
//	JSON                    -> parsed value
//	BLOB/BINARY family      -> UTF-8 string when valid, else base64
//	DECIMAL                 -> string
//	FLOAT, DOUBLE           -> float64
//
// These rules are part of the gateway contract; tests pin them down.
func decodeValue(typeName string, b []byte) any {
	if b == nil {
		return nil
	}

	switch baseTypeName(typeName) {
	case "BIGINT", "INT", "INTEGER", "MEDIUMINT", "SMALLINT", "TINYINT", "YEAR":
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
		return nil

	case "DATETIME", "TIMESTAMP", "DATE", "TIME":
		return string(b)

	case "JSON":
		var v any
		if err := json.Unmarshal(b, &v); err == nil {
			return v
		}
		return string(b)

	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BIT":
		if utf8.Valid(b) {
			return string(b)
		}
		return base64.StdEncoding.EncodeToString(b)

	case "DECIMAL", "NUMERIC":
		return string(b)

	case "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
		return nil

	default:
		return string(b)
	}
}

// baseTypeName strips length and UNSIGNED decorations, e.g.
// "UNSIGNED BIGINT" -> "BIGINT", "VARCHAR(255)" -> "VARCHAR".
func baseTypeName(t string) string {
	t = strings.ToUpper(t)
	t = strings.TrimPrefix(t, "UNSIGNED ")
	if i := strings.IndexByte(t, '('); i > 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
