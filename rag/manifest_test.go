package rag

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := `{
		"ecommerce-1": {
			"mysql": {
				"database": "ecommerce",
				"table": "order",
				"column": "id, status, total_amount, @item_list",
				"metadata": {"id": "order_id"},
				"@item_list": {
					"title": "Items",
					"sql": "SELECT oi.order_id as id, i.name as item_name FROM ecommerce.order_items oi JOIN ecommerce.item i ON oi.item_id = i.id WHERE oi.order_id IN (?id)"
				}
			}
		}
	}`
	err := afero.WriteFile(fs, "/conf/vector.json", []byte(data), 0o644)
	require.NoError(t, err)

	m, err := LoadManifest(fs, "/conf")
	require.NoError(t, err)

	src, ok := m["ecommerce-1"]["mysql"]
	require.True(t, ok, "manifest = %+v", m)
	require.Equal(t, "ecommerce", src.Database)
	require.Equal(t, "order", src.Table)
	require.Equal(t, "order_id", src.Metadata["id"])

	// The @-prefixed sibling key lands in Sub, keyed as written.
	sub, ok := src.Sub["@item_list"]
	require.True(t, ok, "sub-queries = %+v", src.Sub)
	require.Equal(t, "Items", sub.Title)
	require.NotEmpty(t, sub.SQL)
}

func TestSourceColumns(t *testing.T) {
	src := Source{
		Column: "id, status, @item_list, @missing",
		Sub: map[string]SubQuery{
			"@item_list": {Title: "Items", SQL: "WHERE order_id IN (?id)"},
			"@ignored":   {Title: "Ignored", SQL: "WHERE x IN (?x)"},
		},
	}

	normal, subs := src.Columns()
	require.Equal(t, []string{"id", "status"}, normal)

	// Only the tokens named in column select a sub-query; tokens with
	// no sibling entry are dropped.
	require.Len(t, subs, 1)
	require.Equal(t, "Items", subs["@item_list"].Title)
}

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := LoadManifest(afero.NewMemMapFs(), "/conf")
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestLoadManifestBadJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, "/conf/vector.json", []byte("{"), 0o644)
	require.NoError(t, err)

	_, err = LoadManifest(fs, "/conf")
	require.Error(t, err)
}
