package model

import (
	"fmt"
	"strings"
)

// Well-known record field names.
const (
	FieldTitle      = "title"
	FieldAuthor     = "author"
	FieldTranslator = "translator"
	FieldPublisher  = "publisher"
	FieldPlace      = "place"
	FieldLanguage   = "language"
)

// Record is one bibliographic translation row. The engine only reads it.
type Record struct {
	Fields map[string]string `json:"fields"`          // Well-known fields keyed by Field* names
	Extra  map[string]string `json:"extra,omitempty"` // Any other column, addressed as custom:<name>
}

// Field returns a well-known field value, or "" when absent.
func (r Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// ExtraField returns an extension field value, or "" when absent.
func (r Record) ExtraField(name string) string {
	if r.Extra == nil {
		return ""
	}
	return r.Extra[name]
}

// AttributeKind is the closed set of record attributes that can yield graph entities.
type AttributeKind string

const (
	AttributeAuthor     AttributeKind = "author"
	AttributeTranslator AttributeKind = "translator"
	AttributePublisher  AttributeKind = "publisher"
	AttributePlace      AttributeKind = "place"
	AttributeLanguage   AttributeKind = "language"
	AttributeTitle      AttributeKind = "title"
	AttributeCustom     AttributeKind = "custom" // Extension variant, reads Record.Extra
)

// customPrefix namespaces extension attributes, e.g. "custom:genre".
const customPrefix = "custom:"

// builtinKinds lists the non-extension kinds in their canonical order.
var builtinKinds = []AttributeKind{
	AttributeAuthor,
	AttributeTranslator,
	AttributePublisher,
	AttributePlace,
	AttributeLanguage,
	AttributeTitle,
}

// AttributeKey selects which record attribute produces entities.
// Its string form is used both as the node group and as the identity prefix.
type AttributeKey struct {
	Kind AttributeKind
	Name string // Extra field name, only set for AttributeCustom
}

// Attribute returns the key for a built-in kind.
func Attribute(kind AttributeKind) AttributeKey {
	return AttributeKey{Kind: kind}
}

// CustomAttribute returns the key for an extension field.
func CustomAttribute(name string) AttributeKey {
	return AttributeKey{Kind: AttributeCustom, Name: name}
}

// ParseAttributeKey parses "author", "translator", ... or "custom:<name>".
func ParseAttributeKey(s string) (AttributeKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, customPrefix) {
		name := strings.TrimSpace(strings.TrimPrefix(s, customPrefix))
		if name == "" {
			return AttributeKey{}, fmt.Errorf("%w: custom attribute %q has no field name", ErrInvalidAttribute, s)
		}
		return CustomAttribute(name), nil
	}
	for _, kind := range builtinKinds {
		if string(kind) == s {
			return Attribute(kind), nil
		}
	}
	return AttributeKey{}, fmt.Errorf("%w: %q", ErrInvalidAttribute, s)
}

// ParseAttributeKeys parses a list of attribute keys, dropping duplicates but keeping order.
func ParseAttributeKeys(values []string) ([]AttributeKey, error) {
	keys := make([]AttributeKey, 0, len(values))
	seen := make(map[AttributeKey]bool)
	for _, v := range values {
		key, err := ParseAttributeKey(v)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

// String returns the group label, e.g. "author" or "custom:genre".
func (k AttributeKey) String() string {
	if k.Kind == AttributeCustom {
		return customPrefix + k.Name
	}
	return string(k.Kind)
}

// MarshalText implements encoding.TextMarshaler.
func (k AttributeKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AttributeKey) UnmarshalText(text []byte) error {
	parsed, err := ParseAttributeKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DefaultEntities is the attribute list used when nothing is configured.
func DefaultEntities() []AttributeKey {
	return []AttributeKey{
		Attribute(AttributeAuthor),
		Attribute(AttributeTranslator),
		Attribute(AttributePublisher),
	}
}
