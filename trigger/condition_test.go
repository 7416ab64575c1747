package trigger

import (
	"encoding/json"
	"testing"
)

func TestConditionValidate(t *testing.T) {
	cases := []struct {
		name    string
		cond    Condition
		wantErr bool
	}{
		{
			name: "valid equals",
			cond: Condition{Type: ConditionAttributeEquals, Device: "fridge", Attribute: "door", Value: "open"},
		},
		{
			name:    "equals missing value",
			cond:    Condition{Type: ConditionAttributeEquals, Device: "fridge", Attribute: "door"},
			wantErr: true,
		},
		{
			name: "valid transition",
			cond: Condition{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door", From: "closed", To: "open"},
		},
		{
			name:    "transition missing target",
			cond:    Condition{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door"},
			wantErr: true,
		},
		{
			name:    "transition from equals to",
			cond:    Condition{Type: ConditionAttributeTransition, Device: "tv", Attribute: "power", From: "off", To: "off"},
			wantErr: true,
		},
		{
			name: "valid conjunction",
			cond: Condition{Type: ConditionAllOf, Conditions: []Condition{
				{Type: ConditionAttributeEquals, Device: "house", Attribute: "mode", Value: "home"},
				{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door", To: "open"},
			}},
		},
		{
			name:    "empty conjunction",
			cond:    Condition{Type: ConditionAllOf},
			wantErr: true,
		},
		{
			name: "conjunction with bad clause",
			cond: Condition{Type: ConditionAllOf, Conditions: []Condition{
				{Type: ConditionAttributeEquals, Device: "house"},
			}},
			wantErr: true,
		},
		{
			name:    "missing type",
			cond:    Condition{Device: "fridge", Attribute: "door", Value: "open"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cond:    Condition{Type: "any_of", Device: "fridge"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cond.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
			if tc.wantErr && !IsValidationError(err) {
				t.Errorf("expected a validation error type, got %v", err)
			}
		})
	}
}

func TestConditionEvalLevel(t *testing.T) {
	cond := Condition{Type: ConditionAttributeEquals, Device: "tv", Attribute: "power", Value: "off"}

	cur := States{"tv": {"power": "off"}}
	ok, err := cond.Eval(cur, States{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("expected level condition to hold when attribute matches")
	}

	// Level conditions keep holding on every observation.
	ok, _ = cond.Eval(cur, cur)
	if !ok {
		t.Error("expected level condition to hold regardless of previous snapshot")
	}

	ok, _ = cond.Eval(States{"tv": {"power": "on"}}, cur)
	if ok {
		t.Error("expected level condition to fail when attribute differs")
	}

	ok, _ = cond.Eval(States{}, cur)
	if ok {
		t.Error("expected level condition to fail when attribute is absent")
	}
}

func TestConditionEvalTransition(t *testing.T) {
	cond := Condition{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door", From: "closed", To: "open"}

	closed := States{"fridge": {"door": "closed"}}
	open := States{"fridge": {"door": "open"}}

	// First observation is a baseline, never an edge.
	ok, err := cond.Eval(open, States{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if ok {
		t.Error("first observation must not fire an edge condition")
	}

	// closed -> open is the edge.
	ok, _ = cond.Eval(open, closed)
	if !ok {
		t.Error("expected closed -> open to satisfy the transition")
	}

	// open -> open holds the level but is not an edge.
	ok, _ = cond.Eval(open, open)
	if ok {
		t.Error("steady state must not re-fire an edge condition")
	}

	// from mismatch: ajar -> open is a change but not the pinned edge.
	ok, _ = cond.Eval(open, States{"fridge": {"door": "ajar"}})
	if ok {
		t.Error("transition with pinned from must require the origin state")
	}

	// Without from, any change into the target fires.
	loose := Condition{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door", To: "open"}
	ok, _ = loose.Eval(open, States{"fridge": {"door": "ajar"}})
	if !ok {
		t.Error("expected unpinned transition to fire on any change into target")
	}
	ok, _ = loose.Eval(open, open)
	if ok {
		t.Error("unpinned transition must still require a change")
	}
}

func TestConditionEvalConjunction(t *testing.T) {
	cond := Condition{Type: ConditionAllOf, Conditions: []Condition{
		{Type: ConditionAttributeEquals, Device: "house", Attribute: "mode", Value: "home"},
		{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door", To: "open"},
	}}

	prev := States{"house": {"mode": "home"}, "fridge": {"door": "closed"}}

	ok, err := cond.Eval(States{"house": {"mode": "home"}, "fridge": {"door": "open"}}, prev)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("expected conjunction to hold when every clause holds")
	}

	ok, _ = cond.Eval(States{"house": {"mode": "away"}, "fridge": {"door": "open"}}, prev)
	if ok {
		t.Error("expected conjunction to fail when one clause fails")
	}
}

func TestConditionEvalUnknownType(t *testing.T) {
	cond := Condition{Type: "sometimes", Device: "fridge", Attribute: "door"}

	_, err := cond.Eval(States{"fridge": {"door": "open"}}, States{})
	if err == nil {
		t.Fatal("expected an error for an unknown condition type, got nil")
	}
	if !IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestConditionJSONRoundTrip(t *testing.T) {
	in := Condition{Type: ConditionAllOf, Conditions: []Condition{
		{Type: ConditionAttributeTransition, Device: "fridge", Attribute: "door", From: "closed", To: "open"},
		{Type: ConditionAttributeEquals, Device: "house", Attribute: "mode", Value: "home"},
	}}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Condition
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out.Type != ConditionAllOf || len(out.Conditions) != 2 {
		t.Fatalf("round-trip lost structure: %+v", out)
	}
	if out.Conditions[0].From != "closed" || out.Conditions[0].To != "open" {
		t.Errorf("round-trip lost transition fields: %+v", out.Conditions[0])
	}
	if err := out.Validate(); err != nil {
		t.Errorf("round-tripped condition should validate: %v", err)
	}
}
