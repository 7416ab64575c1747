package trigger

import (
	"fmt"
)

// ConditionType discriminates the closed set of condition variants.
type ConditionType string

const (
	// ConditionAttributeEquals is level-triggered: satisfied whenever the
	// attribute currently holds the target value.
	ConditionAttributeEquals ConditionType = "attribute_equals"

	// ConditionAttributeTransition is edge-triggered: satisfied only in the
	// poll cycle where the attribute changes into the target value.
	ConditionAttributeTransition ConditionType = "attribute_transition"

	// ConditionAllOf is a conjunction of clauses evaluated against the same
	// snapshot pair.
	ConditionAllOf ConditionType = "all_of"
)

// Condition is a predicate over device state, discriminated by Type.
// Exactly the fields for the given type are meaningful; Validate enforces
// well-formedness at registration so stored conditions always evaluate.
type Condition struct {
	Type      ConditionType `json:"type" bson:"type"`
	Device    string        `json:"device,omitempty" bson:"device,omitempty"`
	Attribute string        `json:"attribute,omitempty" bson:"attribute,omitempty"`

	// Value is the target for attribute_equals.
	Value string `json:"value,omitempty" bson:"value,omitempty"`

	// To is the target state for attribute_transition; From optionally pins
	// the state the attribute must transition out of.
	To   string `json:"to,omitempty" bson:"to,omitempty"`
	From string `json:"from,omitempty" bson:"from,omitempty"`

	// Conditions holds the clauses of an all_of conjunction.
	Conditions []Condition `json:"conditions,omitempty" bson:"conditions,omitempty"`
}

// Validate checks well-formedness of the condition tree. It does not check
// that the referenced devices exist; devices may not be queryable yet at
// registration time.
func (c Condition) Validate() error {
	switch c.Type {
	case ConditionAttributeEquals:
		if c.Device == "" || c.Attribute == "" {
			return NewValidationError("attribute_equals requires device and attribute")
		}
		if c.Value == "" {
			return NewValidationError("attribute_equals requires a target value")
		}
	case ConditionAttributeTransition:
		if c.Device == "" || c.Attribute == "" {
			return NewValidationError("attribute_transition requires device and attribute")
		}
		if c.To == "" {
			return NewValidationError("attribute_transition requires a target state")
		}
		if c.From == c.To && c.From != "" {
			return NewValidationError("attribute_transition from and to must differ")
		}
	case ConditionAllOf:
		if len(c.Conditions) == 0 {
			return NewValidationError("all_of requires at least one clause")
		}
		for i, sub := range c.Conditions {
			if err := sub.Validate(); err != nil {
				return NewValidationError(fmt.Sprintf("all_of clause %d: %v", i, err))
			}
		}
	case "":
		return NewValidationError("condition type is required")
	default:
		return NewValidationError("unknown condition type: " + string(c.Type))
	}
	return nil
}

// Eval reports whether the condition is satisfied by the move from the prev
// snapshot to the cur snapshot. Level-triggered clauses consult cur only;
// edge-triggered clauses require a prev observation, so an attribute seen
// for the first time establishes a baseline and cannot fire.
//
// The variant switch is exhaustive; a condition type that escaped validation
// (e.g. a hand-edited store document) is an error, never a silent false.
func (c Condition) Eval(cur, prev States) (bool, error) {
	switch c.Type {
	case ConditionAttributeEquals:
		v, ok := cur.Lookup(c.Device, c.Attribute)
		return ok && v == c.Value, nil

	case ConditionAttributeTransition:
		curV, ok := cur.Lookup(c.Device, c.Attribute)
		if !ok || curV != c.To {
			return false, nil
		}
		prevV, ok := prev.Lookup(c.Device, c.Attribute)
		if !ok {
			// First observation, no edge to detect yet.
			return false, nil
		}
		if c.From != "" {
			return prevV == c.From, nil
		}
		return prevV != c.To, nil

	case ConditionAllOf:
		if len(c.Conditions) == 0 {
			return false, NewValidationError("all_of condition has no clauses")
		}
		for _, sub := range c.Conditions {
			ok, err := sub.Eval(cur, prev)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	default:
		return false, NewValidationError("unknown condition type: " + string(c.Type))
	}
}

// Describe renders a short human-readable form for logs and the watch UI.
func (c Condition) Describe() string {
	switch c.Type {
	case ConditionAttributeEquals:
		return fmt.Sprintf("%s.%s == %s", c.Device, c.Attribute, c.Value)
	case ConditionAttributeTransition:
		if c.From != "" {
			return fmt.Sprintf("%s.%s: %s -> %s", c.Device, c.Attribute, c.From, c.To)
		}
		return fmt.Sprintf("%s.%s -> %s", c.Device, c.Attribute, c.To)
	case ConditionAllOf:
		out := ""
		for i, sub := range c.Conditions {
			if i > 0 {
				out += " and "
			}
			out += sub.Describe()
		}
		return out
	default:
		return "unknown(" + string(c.Type) + ")"
	}
}
