// Package mapping holds the legacy to successor identifier tables and the
// namespaces that frame them.
//
// Tables are loaded once and are read-only afterwards, so a single *Table
// can be shared by any number of conversion goroutines without locking.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Table maps legacy local identifiers to successor local identifiers.
type Table struct {
	entries map[string]string
}

// NewTable copies entries into a new Table.
func NewTable(entries map[string]string) *Table {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return &Table{entries: m}
}

// Lookup returns the successor identifier for a legacy local identifier.
func (t *Table) Lookup(legacyID string) (string, bool) {
	if t == nil {
		return "", false
	}
	id, ok := t.entries[legacyID]
	return id, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Keys returns the legacy identifiers in sorted order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format is a table file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file extension; anything other than
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeTable reads a flat object of string to string.
func DecodeTable(r io.Reader, format Format) (*Table, error) {
	entries := make(map[string]string)
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&entries); err != nil {
			return nil, fmt.Errorf("decode json table: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode yaml table: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported table format %q", format)
	}

	for k, v := range entries {
		if k == "" {
			return nil, fmt.Errorf("table has an empty legacy identifier")
		}
		if v == "" {
			return nil, fmt.Errorf("legacy identifier %q maps to an empty identifier", k)
		}
	}
	return &Table{entries: entries}, nil
}

// LoadTable reads a table file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	t, err := DecodeTable(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("loaded mapping table", "path", path, "entries", t.Len())
	return t, nil
}

// Tables bundles the entity and relation tables.
type Tables struct {
	Entities  *Table
	Relations *Table
}

// LoadTables reads both tables concurrently.
func LoadTables(ctx context.Context, entityPath, relationPath string) (*Tables, error) {
	var tables Tables
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := loadTableContext(ctx, entityPath)
		if err != nil {
			return fmt.Errorf("entity table: %w", err)
		}
		tables.Entities = t
		return nil
	})
	g.Go(func() error {
		t, err := loadTableContext(ctx, relationPath)
		if err != nil {
			return fmt.Errorf("relation table: %w", err)
		}
		tables.Relations = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &tables, nil
}

func loadTableContext(ctx context.Context, path string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadTable(path)
}
