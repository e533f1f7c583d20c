package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcli/pkg/parse"
	"github.com/newtron-network/newtcli/pkg/profile"
	"github.com/newtron-network/newtcli/pkg/rangeset"
)

// ============================================================================
// extract / parse
// ============================================================================

var extractCmd = &cobra.Command{
	Use:   "extract <kind> [id]",
	Short: "Print the configuration section of an entity from a saved config",
	Long: `Print the configuration section of one entity, as the kind's header
pattern and terminators cut it from a saved running-config. Without an id,
list the identifiers of every section in document order.

Examples:
  newtcli -p cisco_iosxe --from running.cfg extract interface
  newtcli -p cisco_iosxe --from running.cfg extract interface Gi0/1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, text, err := offlineKind(args[0])
		if err != nil {
			return err
		}
		ix := k.Extractor().Index(text)
		if len(args) == 1 {
			for _, id := range ix.Keys() {
				fmt.Println(id)
			}
			return nil
		}
		section, ok := ix.Section(args[1])
		if !ok {
			return fmt.Errorf("no %s section for %q in %s", k.Name, args[1], dumpFile)
		}
		fmt.Println(section)
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <kind> <id>",
	Short: "Parse the attributes of an entity from a saved config",
	Long: `Parse the attributes of one entity from its section of a saved
running-config. Attributes that fail to parse are reported and skipped
unless they are mandatory.

Examples:
  newtcli -p huawei_vrp --from running.cfg parse interface GE1/0/1
  newtcli -p cisco_iosxe --from running.cfg parse vlan 20 --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, text, err := offlineKind(args[0])
		if err != nil {
			return err
		}
		section, ok := k.Extractor().Extract(text, args[1])
		if !ok {
			return fmt.Errorf("no %s section for %q in %s", k.Name, args[1], dumpFile)
		}
		res, err := parse.Fields(section, k.ParseFields())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(res.Entity)
		}
		printEntity(res.Entity)
		for _, e := range res.Errors {
			fmt.Println(yellow("  skipped: ") + e.Error())
		}
		return nil
	},
}

// offlineKind returns the named kind of the selected profile and the text
// of the --from file.
func offlineKind(name string) (*profile.Kind, string, error) {
	if dumpFile == "" {
		return nil, "", fmt.Errorf("saved config required: use --from <file>")
	}
	p, err := requireProfile()
	if err != nil {
		return nil, "", err
	}
	k, ok := p.Kind(name)
	if !ok {
		return nil, "", fmt.Errorf("profile %s has no kind %q", p.Name, name)
	}
	data, err := os.ReadFile(dumpFile)
	if err != nil {
		return nil, "", err
	}
	return k, string(data), nil
}

// ============================================================================
// range
// ============================================================================

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Expand and compact CLI range text",
	Long: `Expand and compact range text in the grammar of a platform. Without
-p the common comma/dash/slash grammar is used.

Examples:
  newtcli range expand 1-3,7
  newtcli -p huawei_vrp range expand '10 to 12 20'
  newtcli range compact 1 2 3 7
  newtcli range apply 1-5 'remove 2-3' 'add 9'`,
}

var rangeExpandCmd = &cobra.Command{
	Use:   "expand <text>",
	Short: "Expand range text into its elements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := rangeGrammar()
		if err != nil {
			return err
		}
		s, err := g.Expand(args[0])
		if err != nil {
			return err
		}
		return printSet(g, s, false)
	},
}

var rangeCompactCmd = &cobra.Command{
	Use:   "compact <element>...",
	Short: "Compact elements into range text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := rangeGrammar()
		if err != nil {
			return err
		}
		s, err := g.ExpandTokens(args...)
		if err != nil {
			return err
		}
		return printSet(g, s, true)
	},
}

var rangeApplyCmd = &cobra.Command{
	Use:   "apply <text> <fragment>...",
	Short: "Fold add/remove fragments into range text",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := rangeGrammar()
		if err != nil {
			return err
		}
		s, err := g.ExpandFragments(args[0], args[1:]...)
		if err != nil {
			return err
		}
		return printSet(g, s, true)
	},
}

func init() {
	rangeCmd.AddCommand(rangeExpandCmd, rangeCompactCmd, rangeApplyCmd)
}

// rangeGrammar is the grammar of the -p profile, or the default.
func rangeGrammar() (rangeset.Grammar, error) {
	if platformName == "" {
		return rangeset.Default, nil
	}
	p, err := requireProfile()
	if err != nil {
		return rangeset.Grammar{}, err
	}
	return p.Grammar, nil
}

func printSet(g rangeset.Grammar, s rangeset.Set, compact bool) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"elements": s.Strings(),
			"compact":  g.Compact(s),
		})
	}
	if compact {
		fmt.Println(g.Compact(s))
	} else {
		fmt.Println(strings.Join(s.Strings(), " "))
	}
	return nil
}
