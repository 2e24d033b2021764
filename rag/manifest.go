// Package rag feeds table data into a vector store and answers
// questions over it: a paged ETL pipeline that renders rows into
// documents, an embedding + chat client pair, and a retrieval chain.
package rag

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ManifestFile is the pipeline definition read from the config dir.
const ManifestFile = "vector.json"

// Manifest maps collection name to its sources keyed by source type.
// Only "mysql" sources are handled today.
type Manifest map[string]map[string]Source

// Source describes one table scan feeding a collection.
type Source struct {
	// Database and Table name the main scan target.
	Database string
	Table    string

	// Column is the comma-separated projection. Tokens starting with
	// "@" reference sibling sub-query entries instead of columns.
	Column string

	// Metadata maps payload keys to row columns, e.g. {"title": "name"}.
	Metadata map[string]string

	// Sub holds the "@"-prefixed sibling entries, keyed as written
	// ("@item_list"). Their SQL may carry "?field" placeholders bound
	// from main-row columns.
	Sub map[string]SubQuery
}

// SubQuery is one side-query rendered as a titled section.
type SubQuery struct {
	Title string `json:"title"`
	SQL   string `json:"sql"`
}

// UnmarshalJSON decodes the fixed fields and collects every
// "@"-prefixed sibling key as a sub-query definition.
func (s *Source) UnmarshalJSON(data []byte) error {
	var plain struct {
		Database string            `json:"database"`
		Table    string            `json:"table"`
		Column   string            `json:"column"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Database = plain.Database
	s.Table = plain.Table
	s.Column = plain.Column
	s.Metadata = plain.Metadata
	s.Sub = make(map[string]SubQuery)

	for key, val := range raw {
		if !strings.HasPrefix(key, "@") {
			continue
		}
		var sq SubQuery
		if err := json.Unmarshal(val, &sq); err != nil {
			return fmt.Errorf("sub-query %s: %w", key, err)
		}
		s.Sub[key] = sq
	}
	return nil
}

// Columns splits the projection list into plain column names and the
// sub-queries referenced by "@" tokens. Tokens naming a missing
// sibling entry are dropped.
func (s Source) Columns() (normal []string, subs map[string]SubQuery) {
	subs = make(map[string]SubQuery)
	for _, tok := range strings.Split(s.Column, ",") {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "":
		case strings.HasPrefix(tok, "@"):
			if sq, ok := s.Sub[tok]; ok {
				subs[tok] = sq
			}
		default:
			normal = append(normal, tok)
		}
	}
	return normal, subs
}

// LoadManifest reads vector.json from dir. A missing file means the
// ETL is simply not configured; callers get (nil, nil).
func LoadManifest(fs afero.Fs, dir string) (Manifest, error) {
	path := filepath.Join(dir, ManifestFile)

	ok, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("rag: read %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("rag: parse %s: %w", path, err)
	}
	return m, nil
}
