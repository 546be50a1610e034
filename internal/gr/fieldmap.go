package gr

import "encoding/json"

// FieldMap stands in for tree-sitter's native field-query API, which the
// compiled backend's custom wasm ABI (see internal/backend/compiled) does
// not expose: tw_node_inspect/tw_node_children hand back kind ids and byte
// spans only, never a field id. Instead the translator (internal/translator)
// statically determines, for every rule, which child node-kind name can
// only ever satisfy one property of that rule — wrapping any assignment
// target that would otherwise be ambiguous in a synthetic per-property
// non-terminal so the mapping stays 1:1 — and emits this table alongside
// the compiled grammar (spec.md §4.4b).
type FieldMap struct {
	// ByRule[ruleName][childKindName] = property.
	ByRule map[string]map[string]string `json:"by_rule"`
}

// NewFieldMap returns an empty, ready-to-populate field map.
func NewFieldMap() *FieldMap {
	return &FieldMap{ByRule: make(map[string]map[string]string)}
}

// Add records that, under ruleName, a child of kind childKindName always
// satisfies property. Last write wins, matching spec.md §4.2's "first
// assignment occurrence wins" only to the extent that translation always
// calls Add in declaration order.
func (fm *FieldMap) Add(ruleName, childKindName, property string) {
	if fm.ByRule == nil {
		fm.ByRule = make(map[string]map[string]string)
	}
	byKind, ok := fm.ByRule[ruleName]
	if !ok {
		byKind = make(map[string]string)
		fm.ByRule[ruleName] = byKind
	}
	byKind[childKindName] = property
}

// PropertyFor resolves which property a child of kind childKindName
// satisfies under ruleName, or ("", false) if the child is unassigned.
func (fm *FieldMap) PropertyFor(ruleName, childKindName string) (string, bool) {
	if fm == nil {
		return "", false
	}
	byKind, ok := fm.ByRule[ruleName]
	if !ok {
		return "", false
	}
	p, ok := byKind[childKindName]
	return p, ok
}

// MarshalJSON and UnmarshalJSON round-trip the field map as
// "<languageId>.field-map.json" (spec.md §4.5 step 2's translator output).
func (fm *FieldMap) MarshalJSON() ([]byte, error) {
	type wire FieldMap
	return json.Marshal((*wire)(fm))
}

func (fm *FieldMap) UnmarshalJSON(data []byte) error {
	type wire FieldMap
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*fm = FieldMap(w)
	return nil
}
