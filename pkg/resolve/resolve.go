// Package resolve maps records to the typed entities that become graph nodes.
package resolve

import (
	"strings"

	"github.com/ritzau/translation-network/pkg/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ValueSeparator splits multi-valued person and publisher fields such as
// "A. Smith; B. Jones". Other kinds keep the separator as part of the value.
const ValueSeparator = ";"

// placeholders are skipped verbatim (case-sensitive) after trimming.
var placeholders = map[string]bool{
	"Unknown": true,
	"N/A":     true,
}

// Entity is one resolved identity within a record.
type Entity struct {
	ID    string // group + ":" + normalized value
	Name  string // display value
	Group string
}

// extractor reads the raw value for an attribute key from a record.
type extractor func(rec model.Record, key model.AttributeKey) string

func fieldExtractor(field string) extractor {
	return func(rec model.Record, _ model.AttributeKey) string {
		return rec.Field(field)
	}
}

type attribute struct {
	extract     extractor
	multiValued bool
}

// attributes is the single dispatch table from attribute kind to record field.
var attributes = map[model.AttributeKind]attribute{
	model.AttributeAuthor:     {extract: fieldExtractor(model.FieldAuthor), multiValued: true},
	model.AttributeTranslator: {extract: fieldExtractor(model.FieldTranslator), multiValued: true},
	model.AttributePublisher:  {extract: fieldExtractor(model.FieldPublisher), multiValued: true},
	model.AttributePlace:      {extract: fieldExtractor(model.FieldPlace)},
	model.AttributeLanguage:   {extract: fieldExtractor(model.FieldLanguage)},
	model.AttributeTitle:      {extract: fieldExtractor(model.FieldTitle)},
	model.AttributeCustom: {extract: func(rec model.Record, key model.AttributeKey) string {
		return rec.ExtraField(key.Name)
	}},
}

func (a attribute) values(rec model.Record, key model.AttributeKey) []string {
	raw := a.extract(rec, key)
	if !a.multiValued {
		return []string{raw}
	}
	return strings.Split(raw, ValueSeparator)
}

// Resolve returns the entities of rec for the given attribute keys, in key order.
// Empty, whitespace-only and placeholder values are omitted; unknown kinds resolve to nothing.
func Resolve(rec model.Record, keys []model.AttributeKey) []Entity {
	entities := make([]Entity, 0, len(keys))
	for _, key := range keys {
		attr, ok := attributes[key.Kind]
		if !ok {
			continue
		}
		group := key.String()
		for _, raw := range attr.values(rec, key) {
			name := Display(raw)
			if name == "" || placeholders[name] {
				continue
			}
			entities = append(entities, Entity{
				ID:    Identity(group, name),
				Name:  name,
				Group: group,
			})
		}
	}
	return entities
}

// Display trims a raw value and collapses inner whitespace runs.
func Display(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Normalize folds a display value into its identity form: NFKC, collapsed
// whitespace and case folding.
func Normalize(value string) string {
	value = norm.NFKC.String(value)
	return cases.Fold().String(Display(value))
}

// Identity builds the node ID for a value in a group.
func Identity(group, value string) string {
	return group + ":" + Normalize(value)
}
