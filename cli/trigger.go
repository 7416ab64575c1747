package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthlabs/hearth/client"
	"github.com/hearthlabs/hearth/trigger"
)

func newTriggerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Register, list, and cancel condition/action triggers",
	}
	cmd.AddCommand(
		newTriggerAddCmd(opts),
		newTriggerListCmd(opts),
		newTriggerCancelCmd(opts),
	)
	return cmd
}

func newTriggerAddCmd(opts *options) *cobra.Command {
	var (
		owner         string
		action        string
		description   string
		ttl           time.Duration
		conditionJSON string
		device        string
		attribute     string
		equals        string
		to            string
		from          string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a trigger that fires when device state matches",
		Long: `Register a trigger. The condition comes either from --condition (raw JSON,
required for all_of conjunctions) or from the convenience flags:

  --device + --attribute + --equals         level-triggered match
  --device + --attribute + --to [--from]    edge-triggered transition`,
		Example: `  # Edge: fire once when the door changes to open
  hearth trigger add --owner amal --device "fridge door" --attribute state --to open \
      --action '{"command":"turn on the dining room light"}'

  # Level: fire while the thermostat reads heat
  hearth trigger add --owner amal --device thermostat --attribute mode --equals heat \
      --action '{"command":"close the blinds"}' --ttl 2h

  # Conjunction via raw JSON
  hearth trigger add --owner amal --condition '{"type":"all_of","conditions":[
      {"type":"attribute_equals","device":"tv","attribute":"power","value":"on"},
      {"type":"attribute_transition","device":"lamp","attribute":"state","to":"off"}]}' \
      --action '{"command":"pause the movie"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := buildCondition(conditionJSON, device, attribute, equals, to, from)
			if err != nil {
				return err
			}
			if action == "" {
				return fmt.Errorf("--action is required")
			}
			if !json.Valid([]byte(action)) {
				return fmt.Errorf("--action must be valid JSON")
			}

			cli, err := opts.client()
			if err != nil {
				return err
			}

			req := client.RegisterTriggerRequest{
				Condition:   cond,
				Action:      json.RawMessage(action),
				Owner:       owner,
				Description: description,
			}
			if ttl > 0 {
				req.TTLSeconds = int(ttl / time.Second)
			}

			id, err := cli.RegisterTrigger(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Registered trigger %s (%s)\n", id, cond.Describe())
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "user registering the trigger (required)")
	cmd.Flags().StringVar(&action, "action", "", "JSON action payload handed back on fire (required)")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "time to live, e.g. 2h (default: no expiry)")
	cmd.Flags().StringVar(&conditionJSON, "condition", "", "raw condition JSON (overrides convenience flags)")
	cmd.Flags().StringVar(&device, "device", "", "device id for the convenience condition")
	cmd.Flags().StringVar(&attribute, "attribute", "", "attribute name for the convenience condition")
	cmd.Flags().StringVar(&equals, "equals", "", "level-triggered target value")
	cmd.Flags().StringVar(&to, "to", "", "edge-triggered target state")
	cmd.Flags().StringVar(&from, "from", "", "edge-triggered required prior state")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

// buildCondition assembles a condition from raw JSON or the flag shorthand.
func buildCondition(raw, device, attribute, equals, to, from string) (trigger.Condition, error) {
	if raw != "" {
		var cond trigger.Condition
		if err := json.Unmarshal([]byte(raw), &cond); err != nil {
			return trigger.Condition{}, fmt.Errorf("invalid --condition JSON: %w", err)
		}
		return cond, nil
	}

	if device == "" || attribute == "" {
		return trigger.Condition{}, fmt.Errorf("either --condition or --device and --attribute are required")
	}
	switch {
	case equals != "" && to != "":
		return trigger.Condition{}, fmt.Errorf("--equals and --to are mutually exclusive")
	case equals != "":
		return trigger.Condition{
			Type:      trigger.ConditionAttributeEquals,
			Device:    device,
			Attribute: attribute,
			Value:     equals,
		}, nil
	case to != "":
		return trigger.Condition{
			Type:      trigger.ConditionAttributeTransition,
			Device:    device,
			Attribute: attribute,
			To:        to,
			From:      from,
		}, nil
	default:
		return trigger.Condition{}, fmt.Errorf("one of --equals or --to is required with --device")
	}
}

func newTriggerListCmd(opts *options) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}

			triggers, err := cli.ListTriggers(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(triggers) == 0 {
				fmt.Println("No pending triggers.")
				return nil
			}

			fmt.Printf("%-36s  %-12s  %-8s  %s\n", "ID", "OWNER", "AGE", "CONDITION")
			for _, t := range triggers {
				fmt.Printf("%-36s  %-12s  %-8s  %s\n",
					t.ID, t.Owner, formatAge(time.Since(t.CreatedAt)), t.Condition.Describe())
				if t.Description != "" {
					fmt.Printf("%38s%s\n", "", t.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only this owner's triggers")
	return cmd
}

// formatAge renders a duration in the largest useful unit.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func newTriggerCancelCmd(opts *options) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "cancel <trigger-id>",
		Short: "Cancel a pending trigger you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])

			cli, err := opts.client()
			if err != nil {
				return err
			}
			if err := cli.CancelTrigger(cmd.Context(), id, owner); err != nil {
				return err
			}
			fmt.Printf("✓ Cancelled trigger %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner of the trigger (required)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
