package cli

import (
	"testing"

	"github.com/hearthlabs/hearth/trigger"
)

func TestBuildConditionFromFlags(t *testing.T) {
	cond, err := buildCondition("", "fridge door", "state", "", "open", "closed")
	if err != nil {
		t.Fatalf("buildCondition: %v", err)
	}
	if cond.Type != trigger.ConditionAttributeTransition {
		t.Errorf("type = %s, want attribute_transition", cond.Type)
	}
	if cond.To != "open" || cond.From != "closed" {
		t.Errorf("transition = %s -> %s", cond.From, cond.To)
	}

	cond, err = buildCondition("", "thermostat", "mode", "heat", "", "")
	if err != nil {
		t.Fatalf("buildCondition: %v", err)
	}
	if cond.Type != trigger.ConditionAttributeEquals || cond.Value != "heat" {
		t.Errorf("cond = %+v, want attribute_equals heat", cond)
	}
}

func TestBuildConditionFromJSON(t *testing.T) {
	raw := `{"type":"all_of","conditions":[
		{"type":"attribute_equals","device":"tv","attribute":"power","value":"on"},
		{"type":"attribute_transition","device":"lamp","attribute":"state","to":"off"}]}`

	cond, err := buildCondition(raw, "", "", "", "", "")
	if err != nil {
		t.Fatalf("buildCondition: %v", err)
	}
	if cond.Type != trigger.ConditionAllOf || len(cond.Conditions) != 2 {
		t.Fatalf("cond = %+v, want all_of with 2 clauses", cond)
	}
	if err := cond.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildConditionRejectsAmbiguity(t *testing.T) {
	if _, err := buildCondition("", "tv", "power", "on", "off", ""); err == nil {
		t.Error("expected error when both --equals and --to are set")
	}
	if _, err := buildCondition("", "", "", "", "", ""); err == nil {
		t.Error("expected error when no condition inputs are given")
	}
	if _, err := buildCondition("{not json", "", "", "", "", ""); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
