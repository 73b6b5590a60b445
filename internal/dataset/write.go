package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Report file names written next to the output dataset.
const (
	MissingEntitiesFile  = "missing_entities.txt"
	MissingRelationsFile = "missing_relations.txt"
)

// WriteRecords writes records as an indented JSON array, in order.
func WriteRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// WriteMissing writes one identifier per line. An empty list produces an
// empty file.
func WriteMissing(path string, ids []string) error {
	var content string
	if len(ids) > 0 {
		content = strings.Join(ids, "\n") + "\n"
	}
	return writeFile(path, []byte(content))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
