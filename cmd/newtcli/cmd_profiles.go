package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/newtcli/pkg/cli"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect vendor profiles",
	Long: `Inspect the vendor profiles: the built-in ones and those in the site
profile directory (-P or the profile_dir setting).

Examples:
  newtcli profiles list
  newtcli profiles show huawei_vrp_v8`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadProfiles()
		if err != nil {
			return err
		}

		type row struct {
			Name      string   `json:"name"`
			Version   string   `json:"version,omitempty"`
			Platforms []string `json:"platforms"`
			Kinds     int      `json:"kinds"`
			Source    string   `json:"source"`
		}
		var rows []row
		for _, name := range reg.Names() {
			p, _ := reg.Get(name)
			rows = append(rows, row{p.Name, p.Version, p.Platforms, len(p.Kinds), p.Source()})
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(rows)
		}

		t := cli.NewTable("NAME", "VERSION", "PLATFORMS", "KINDS", "SOURCE")
		for _, r := range rows {
			v := r.Version
			if v == "" {
				v = dim("any")
			}
			t.Row(r.Name, v, strings.Join(r.Platforms, ", "), fmt.Sprint(r.Kinds), r.Source)
		}
		t.Flush()
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the kinds of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadProfiles()
		if err != nil {
			return err
		}
		p, err := reg.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s  %s\n", bold(p.Name), p.Description)
		fmt.Printf("Source:    %s\n", p.Source())
		if p.Extends != "" {
			fmt.Printf("Extends:   %s\n", p.Extends)
		}
		fmt.Printf("Platforms: %s\n", strings.Join(p.Platforms, ", "))
		fmt.Printf("Session:   %s ... %s\n\n",
			strings.Join(p.Session.Prologue, "; "), strings.Join(p.Session.Epilogue, "; "))

		t := cli.NewTable("KIND", "PATH", "OPS", "PROBE", "FIELDS")
		for _, k := range p.Kinds {
			ops := strings.Join(k.Ops, ",")
			if ops == "" {
				ops = "all"
			}
			t.Row(k.Name, k.Path, ops, k.Probe, fmt.Sprint(len(k.Fields)))
		}
		t.Flush()
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd, profilesShowCmd)
}
