package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/llm-inline/llmi/pkg/skills"
)

// ShowConfig holds the options of the show command
type ShowConfig struct {
	Output string
}

// NewShowConfig returns the default show options
func NewShowConfig() *ShowConfig {
	return &ShowConfig{Output: "text"}
}

var showCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show an installed skill's manifest",
	Long: `Show the manifest of an installed skill: its description, parameters
and handler.

Examples:
  llmi show translate
  llmi show translate -o yaml`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSkillNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getShowConfigFromFlags(cmd)
		ctx := cmd.Context()

		registry, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		manifest, dir, err := registry.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		return renderManifest(cmd.OutOrStdout(), manifest, dir, config.Output)
	},
}

func init() {
	defaults := NewShowConfig()
	showCmd.Flags().StringP("output", "o", defaults.Output, "Output format (text, json, yaml)")
	rootCmd.AddCommand(showCmd)
}

func getShowConfigFromFlags(cmd *cobra.Command) *ShowConfig {
	config := NewShowConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	return config
}

func renderManifest(w io.Writer, m *skills.Manifest, dir, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode manifest")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return errors.Wrap(err, "failed to encode manifest")
		}
		return enc.Close()
	case "text", "":
		return writeManifestText(w, m, dir)
	default:
		return newUsageError("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeManifestText(w io.Writer, m *skills.Manifest, dir string) error {
	fmt.Fprintf(w, "Name:        %s\n", m.Name)
	if m.Version != "" {
		fmt.Fprintf(w, "Version:     %s\n", m.Version)
	}
	if m.Author != "" {
		fmt.Fprintf(w, "Author:      %s\n", m.Author)
	}
	if m.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", m.Description)
	}
	fmt.Fprintf(w, "Directory:   %s\n", dir)
	if m.HasHandler() {
		fmt.Fprintf(w, "Handler:     %s\n", m.Handler)
	}

	if len(m.Parameters) == 0 {
		_, err := fmt.Fprintln(w, "\nNo parameters.")
		return err
	}

	fmt.Fprintln(w, "\nParameters:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tTYPE\tREQUIRED\tDEFAULT\tDESCRIPTION")
	for _, p := range m.Parameters {
		def := "-"
		if p.Default != nil {
			def = fmt.Sprint(p.Default)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%t\t%s\t%s\n", p.Name, p.Kind, p.Required, def, p.Description)
	}
	return tw.Flush()
}
