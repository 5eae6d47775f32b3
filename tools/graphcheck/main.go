// Package main provides the graphcheck CLI for validating and maintaining
// progression graph files without starting the server.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"craftgate/server/progression/graph"
)

var rootCmd = &cobra.Command{
	Use:   "graphcheck",
	Short: "Validate and inspect progression graph files",
	Long:  `graphcheck loads one or more progression graph files the same way the server does, reports every defect the loader would flag, and can convert or re-export graphs deterministically.`,
}

var validateCmd = &cobra.Command{
	Use:   "validate <graph-file>...",
	Short: "Load graph files and report problems",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var exportCmd = &cobra.Command{
	Use:   "export <graph-file>...",
	Short: "Re-export the merged graph as canonical JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExport,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for graph documents",
	RunE:  runSchema,
}

var (
	strictFlag bool
	jsonFlag   bool
)

func init() {
	validateCmd.Flags().BoolVar(&strictFlag, "strict", false, "Exit non-zero on any problem, not just load failures")
	validateCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output problems as JSON")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	store, err := graph.Load(nil, args...)
	if err != nil {
		return err
	}
	snapshot := store.Snapshot()
	problems := snapshot.Problems

	if jsonFlag {
		out := struct {
			Nodes    int             `json:"nodes"`
			Tabs     int             `json:"tabs"`
			Cyclic   []string        `json:"cyclic,omitempty"`
			Problems []graph.Problem `json:"problems"`
		}{
			Nodes:    len(snapshot.Nodes),
			Tabs:     len(snapshot.Tabs),
			Cyclic:   sortedIDs(snapshot.Cyclic),
			Problems: problems,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d nodes, %d tabs\n", len(snapshot.Nodes), len(snapshot.Tabs))
		for _, id := range sortedIDs(snapshot.Cyclic) {
			fmt.Fprintf(cmd.OutOrStdout(), "cyclic: node %s can never become available\n", id)
		}
		for _, problem := range problems {
			line := fmt.Sprintf("%s: %s", problem.Kind, problem.Detail)
			if problem.Suggestion != "" {
				line += fmt.Sprintf(" (did you mean %q?)", problem.Suggestion)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		if len(problems) == 0 && len(snapshot.Cyclic) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no problems found")
		}
	}

	if strictFlag && (len(problems) > 0 || len(snapshot.Cyclic) > 0) {
		return fmt.Errorf("graph has %d problems and %d cyclic nodes", len(problems), len(snapshot.Cyclic))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := graph.Load(nil, args...)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store.Export(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	reflector := jsonschema.Reflector{AllowAdditionalProperties: true}
	schema := reflector.Reflect(&graph.Document{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
