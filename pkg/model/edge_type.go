package model

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeType classifies a co-occurrence edge by the groups it connects.
type EdgeType string

const (
	EdgeTranslation   EdgeType = "translation"   // author <-> translator
	EdgePublication   EdgeType = "publication"   // anything <-> publisher
	EdgeCollaboration EdgeType = "collaboration" // translator <-> translator
	EdgeGeographic    EdgeType = "geographic"    // anything <-> place
	EdgeLinguistic    EdgeType = "linguistic"    // anything <-> language
	EdgeCustom        EdgeType = "custom"        // everything else
)

// AllEdgeTypes returns every edge type in a stable order.
func AllEdgeTypes() []EdgeType {
	return []EdgeType{
		EdgeTranslation,
		EdgePublication,
		EdgeCollaboration,
		EdgeGeographic,
		EdgeLinguistic,
		EdgeCustom,
	}
}

// ParseEdgeType validates an edge type name.
func ParseEdgeType(s string) (EdgeType, error) {
	s = strings.TrimSpace(s)
	for _, t := range AllEdgeTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEdgeType, s)
}

// classificationRule matches a pair of groups in either order.
type classificationRule struct {
	match func(a, b string) bool
	typ   EdgeType
}

func pairOf(x, y AttributeKind) func(a, b string) bool {
	return func(a, b string) bool {
		return (a == string(x) && b == string(y)) || (a == string(y) && b == string(x))
	}
}

func either(x AttributeKind) func(a, b string) bool {
	return func(a, b string) bool {
		return a == string(x) || b == string(x)
	}
}

// classificationTable is evaluated top to bottom; the first match wins.
var classificationTable = []classificationRule{
	{match: pairOf(AttributeAuthor, AttributeTranslator), typ: EdgeTranslation},
	{match: either(AttributePublisher), typ: EdgePublication},
	{match: pairOf(AttributeTranslator, AttributeTranslator), typ: EdgeCollaboration},
	{match: either(AttributePlace), typ: EdgeGeographic},
	{match: either(AttributeLanguage), typ: EdgeLinguistic},
}

// Classify returns the edge type for a pair of entity groups.
func Classify(groupA, groupB string) EdgeType {
	for _, rule := range classificationTable {
		if rule.match(groupA, groupB) {
			return rule.typ
		}
	}
	return EdgeCustom
}

// EdgeTypeSet is a set of enabled edge types.
type EdgeTypeSet map[EdgeType]bool

// NewEdgeTypeSet builds a set from the given types.
func NewEdgeTypeSet(types ...EdgeType) EdgeTypeSet {
	set := make(EdgeTypeSet, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// ParseEdgeTypeSet parses edge type names into a set.
func ParseEdgeTypeSet(values []string) (EdgeTypeSet, error) {
	set := make(EdgeTypeSet, len(values))
	for _, v := range values {
		t, err := ParseEdgeType(v)
		if err != nil {
			return nil, err
		}
		set[t] = true
	}
	return set, nil
}

// Has reports whether t is enabled.
func (s EdgeTypeSet) Has(t EdgeType) bool {
	return s[t]
}

// Sorted returns the enabled types in a stable order.
func (s EdgeTypeSet) Sorted() []EdgeType {
	types := make([]EdgeType, 0, len(s))
	for t, ok := range s {
		if ok {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
