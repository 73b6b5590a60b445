package mapping

import (
	"fmt"
	"strings"
)

// Default namespaces.
const (
	FreebaseEntity   = "http://rdf.freebase.com/ns/m."
	FreebaseRelation = "http://rdf.freebase.com/ns/"
	WikidataEntity   = "http://www.wikidata.org/entity/"
	WikidataRelation = "http://www.wikidata.org/prop/direct/"
)

// Namespaces fixes the IRI prefixes on both sides of the conversion.
//
// An IRI in an entity position must start with LegacyEntity; its remainder is
// the local identifier looked up in the entity table. Relation positions use
// LegacyRelation the same way. Rewritten IRIs are the successor prefix plus
// the mapped identifier, and generated queries declare EntityLabel and
// RelationLabel for the successor prefixes.
type Namespaces struct {
	LegacyEntity      string `yaml:"legacy_entity" json:"legacy_entity"`
	LegacyRelation    string `yaml:"legacy_relation" json:"legacy_relation"`
	SuccessorEntity   string `yaml:"successor_entity" json:"successor_entity"`
	SuccessorRelation string `yaml:"successor_relation" json:"successor_relation"`
	EntityLabel       string `yaml:"entity_label" json:"entity_label"`
	RelationLabel     string `yaml:"relation_label" json:"relation_label"`
}

// DefaultNamespaces returns the Freebase to Wikidata configuration.
func DefaultNamespaces() Namespaces {
	return Namespaces{
		LegacyEntity:      FreebaseEntity,
		LegacyRelation:    FreebaseRelation,
		SuccessorEntity:   WikidataEntity,
		SuccessorRelation: WikidataRelation,
		EntityLabel:       "wd",
		RelationLabel:     "wdt",
	}
}

// WithDefaults fills every empty field from DefaultNamespaces.
func (n Namespaces) WithDefaults() Namespaces {
	d := DefaultNamespaces()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&n.LegacyEntity, d.LegacyEntity)
	fill(&n.LegacyRelation, d.LegacyRelation)
	fill(&n.SuccessorEntity, d.SuccessorEntity)
	fill(&n.SuccessorRelation, d.SuccessorRelation)
	fill(&n.EntityLabel, d.EntityLabel)
	fill(&n.RelationLabel, d.RelationLabel)
	return n
}

// Validate checks that every prefix is set and that the two successor
// labels are distinct prefix names.
func (n Namespaces) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"legacy_entity", n.LegacyEntity},
		{"legacy_relation", n.LegacyRelation},
		{"successor_entity", n.SuccessorEntity},
		{"successor_relation", n.SuccessorRelation},
		{"entity_label", n.EntityLabel},
		{"relation_label", n.RelationLabel},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("namespace %s is required", f.name)
		}
	}
	if n.EntityLabel == n.RelationLabel {
		return fmt.Errorf("entity_label and relation_label must differ, both are %q", n.EntityLabel)
	}
	for _, label := range []string{n.EntityLabel, n.RelationLabel} {
		if !validLabel(label) {
			return fmt.Errorf("invalid prefix label %q", label)
		}
	}
	return nil
}

// IsLegacy reports whether iri is one of the legacy namespace IRIs. Prologue
// declarations of these are dropped from converted queries.
func (n Namespaces) IsLegacy(iri string) bool {
	return iri == n.LegacyEntity || iri == n.LegacyRelation
}

func validLabel(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '_' || c == '-'):
		default:
			return false
		}
	}
	return s != ""
}
