package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kgbridge/internal/mapping"
)

// Default mapping table locations, relative to the working directory.
const (
	DefaultEntityMap   = "mappings/entities.json"
	DefaultRelationMap = "mappings/relations.json"
)

// Profile is a YAML conversion profile:
//
//	entity_map: mappings/entities.json
//	relation_map: mappings/relations.json
//	missing_dir: reports
//	db: runs.db
//	workers: 4
//	namespaces:
//	  successor_entity: http://www.wikidata.org/entity/
//
// Relative paths are resolved against the profile's directory.
type Profile struct {
	EntityMap   string              `yaml:"entity_map"`
	RelationMap string              `yaml:"relation_map"`
	MissingDir  string              `yaml:"missing_dir"`
	Database    string              `yaml:"db"`
	Workers     int                 `yaml:"workers"`
	Namespaces  *mapping.Namespaces `yaml:"namespaces"`
}

// LoadProfile reads a profile file. Unknown fields are rejected.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if p.Workers < 0 {
		return nil, fmt.Errorf("invalid profile %s: workers must be non-negative", path)
	}
	if p.Namespaces != nil {
		if err := p.Namespaces.WithDefaults().Validate(); err != nil {
			return nil, fmt.Errorf("invalid profile %s: %w", path, err)
		}
	}

	base := filepath.Dir(path)
	for _, field := range []*string{&p.EntityMap, &p.RelationMap, &p.MissingDir, &p.Database} {
		if *field != "" && !filepath.IsAbs(*field) {
			*field = filepath.Join(base, *field)
		}
	}
	return &p, nil
}

// Settings are the resolved inputs of a conversion run.
type Settings struct {
	EntityMap   string
	RelationMap string

	// MissingDir is where the missing-identifier reports are written.
	MissingDir string

	// Database is the run log path; empty disables the run log.
	Database string

	Workers    int
	Namespaces mapping.Namespaces
}

// resolveSettings layers defaults, then the profile, then explicitly set
// flags.
func resolveSettings(opts *ConvertOptions, outputPath string, changed func(name string) bool) (Settings, error) {
	s := Settings{
		EntityMap:   DefaultEntityMap,
		RelationMap: DefaultRelationMap,
		MissingDir:  filepath.Dir(outputPath),
		Workers:     1,
		Namespaces:  mapping.DefaultNamespaces(),
	}

	if opts.Config != "" {
		p, err := LoadProfile(opts.Config)
		if err != nil {
			return Settings{}, err
		}
		setIf(&s.EntityMap, p.EntityMap)
		setIf(&s.RelationMap, p.RelationMap)
		setIf(&s.MissingDir, p.MissingDir)
		setIf(&s.Database, p.Database)
		if p.Workers > 0 {
			s.Workers = p.Workers
		}
		if p.Namespaces != nil {
			s.Namespaces = p.Namespaces.WithDefaults()
		}
	}

	if changed("entity-map") {
		s.EntityMap = opts.EntityMap
	}
	if changed("relation-map") {
		s.RelationMap = opts.RelationMap
	}
	if changed("missing-dir") {
		s.MissingDir = opts.MissingDir
	}
	if changed("db") {
		s.Database = opts.Database
	}
	if changed("workers") {
		if opts.Workers < 1 {
			return Settings{}, fmt.Errorf("--workers must be at least 1, got %d", opts.Workers)
		}
		s.Workers = opts.Workers
	}
	return s, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
