package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/txn"
)

var showCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show the current state of an entity",
	Long: `Show the current state of an entity as read from the device.

Examples:
  newtcli -p cisco_iosxe -d leaf1 show 'interface[Gi0/1]'
  newtcli -p cisco_iosxe --from running.cfg show 'network-instance[default]/vlan[20]' --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := entity.ParseKey(args[0])
		if err != nil {
			return err
		}
		return withTxn(func(ctx context.Context, t *txn.Transaction) error {
			e, err := t.Get(ctx, key)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(e)
			}
			if !e.Exists() {
				fmt.Printf("%s: %s\n", key, dim("not present"))
				return nil
			}
			fmt.Println(bold(key.String()))
			printEntity(e)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list [parent] <kind>",
	Short: "List the entities of a kind",
	Long: `List the keys of the entities of a kind, in device order.

Examples:
  newtcli -p cisco_iosxe -d leaf1 list interface
  newtcli -p cisco_iosxe -d leaf1 list 'network-instance[default]' vlan`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var parent entity.Key
		kind := args[len(args)-1]
		if len(args) == 2 {
			var err error
			if parent, err = entity.ParseKey(args[0]); err != nil {
				return err
			}
		}
		return withTxn(func(ctx context.Context, t *txn.Transaction) error {
			keys, err := t.List(ctx, parent, kind)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(keys)
			}
			if len(keys) == 0 {
				fmt.Printf("No %s entities found\n", kind)
				return nil
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		})
	},
}

var (
	desiredFile string
	mergeMode   bool
)

var planCmd = &cobra.Command{
	Use:   "plan <key> [attr=value...]",
	Short: "Preview the changes to reach a desired state",
	Long: `Preview the change list and command text that would move an entity
to the desired state. Nothing is sent to the device.

The desired state comes from a YAML file (-f), from attr=value pairs, or
both (pairs override the file). With --merge the desired state starts
from the current state, so only the named attributes change.

Examples:
  newtcli -p cisco_iosxe --from running.cfg plan 'interface[Gi0/1]' -f desired.yaml
  newtcli -p cisco_iosxe -d leaf1 plan 'interface[Gi0/1]' mtu=9000 --merge`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		executeMode = false
		return runApply(args)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <key> [attr=value...]",
	Short: "Move an entity to a desired state",
	Long: `Move an entity to the desired state. Previews by default; use -x to
send the commands to the device.

Examples:
  newtcli -p cisco_iosxe -d leaf1 apply 'network-instance[default]/vlan[39]' name=users -x
  newtcli -p cisco_iosxe -d leaf1 apply 'interface[Gi0/1]' -f gi0-1.yaml -x --verify`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(args)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an entity",
	Long: `Delete an entity from the device. Deletion is refused while another
entity still references it.

Examples:
  newtcli -p cisco_iosxe -d leaf1 delete 'network-instance[default]/vlan[300]'
  newtcli -p cisco_iosxe -d leaf1 delete 'network-instance[default]/vlan[300]' -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := entity.ParseKey(args[0])
		if err != nil {
			return err
		}
		return withTxn(func(ctx context.Context, t *txn.Transaction) error {
			res, err := t.Delete(ctx, key)
			if err != nil {
				printTransportError(err)
				return err
			}
			return printResult(res)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{planCmd, applyCmd} {
		cmd.Flags().StringVarP(&desiredFile, "file", "f", "", "YAML file with the desired attributes")
		cmd.Flags().BoolVar(&mergeMode, "merge", false, "Start from the current state")
	}
}

// runApply builds the desired state of args[0] and applies it.
func runApply(args []string) error {
	key, err := entity.ParseKey(args[0])
	if err != nil {
		return err
	}
	desired, err := desiredAttrs(desiredFile, args[1:])
	if err != nil {
		return err
	}
	if len(desired) == 0 && !mergeMode {
		return fmt.Errorf("desired state required: use -f <file> or attr=value pairs")
	}
	return withTxn(func(ctx context.Context, t *txn.Transaction) error {
		after, err := entity.FromMap(desired)
		if err != nil {
			return err
		}
		if mergeMode {
			current, err := t.Get(ctx, key)
			if err != nil {
				return err
			}
			after = merge(current, after)
		}
		res, err := t.Apply(ctx, key, after)
		if err != nil {
			printTransportError(err)
			return err
		}
		return printResult(res)
	})
}

// desiredAttrs reads the desired attributes from a YAML file and
// attr=value pairs. Pairs override the file; values stay strings and are
// converted by the kind's schema.
func desiredAttrs(file string, pairs []string) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		if m == nil {
			m = map[string]interface{}{}
		}
	}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected attr=value", p)
		}
		m[name] = value
	}
	return m, nil
}

// merge overlays the attributes of desired on current.
func merge(current, desired entity.Entity) entity.Entity {
	fields := make([]entity.Field, 0, desired.Len())
	for _, name := range desired.Names() {
		fields = append(fields, entity.F(name, desired.Get(name)))
	}
	return current.With(fields...)
}

// printResult shows a planned or executed write.
func printResult(res *txn.Result) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(res)
	}
	if !res.Claimed() {
		if res.Changes.IsEmpty() && !res.Before.Exists() && !res.After.Exists() {
			fmt.Printf("%s: %s\n", res.Key, dim("not present, nothing to do"))
			return nil
		}
		fmt.Printf("%s: %s\n", res.Key, yellow("no handler for this entity on "+platformName))
		return nil
	}

	fmt.Printf("%s %s %s\n", bold(string(res.Operation)), res.Key, dim("("+res.Handler+")"))
	cli.PrintChanges(os.Stdout, res.Changes, res.Commands)
	if res.Commands.IsEmpty() {
		return nil
	}
	if res.Executed {
		fmt.Println("\n" + green("Changes applied successfully."))
		if verbose && res.Output != "" {
			fmt.Println(dim(res.Output))
		}
		return nil
	}
	printDryRunNotice()
	return nil
}

// printEntity prints the attributes of e as a table.
func printEntity(e entity.Entity) {
	t := cli.NewTable("ATTRIBUTE", "VALUE").WithPrefix("  ")
	for _, name := range e.Names() {
		t.Row(name, e.Get(name).String())
	}
	t.Flush()
}
