package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go-fea-pipeline/internal/archive"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "List the instances, sets, steps and fields of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		store, err := archive.OpenWithRetry(ctx, args[0], archive.DefaultRetryPolicy, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		sum := archive.Describe(store)
		out := cmd.OutOrStdout()
		switch strings.ToLower(inspectFormat) {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(sum)
		case "", "text":
			printArchiveSummary(out, sum)
			return nil
		default:
			return fmt.Errorf("unknown output format %q", inspectFormat)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "output", "text", "text, json or yaml")
	rootCmd.AddCommand(inspectCmd)
}

func printArchiveSummary(out io.Writer, sum archive.Summary) {
	fmt.Fprintf(out, "%s\n\n", sum.Path)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tNODES\tELEMENTS\tNODE SETS\tELEMENT SETS")
	for _, inst := range sum.Instances {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", inst.Name, inst.Nodes, inst.Elements,
			strings.Join(inst.NodeSets, ","), strings.Join(inst.ElementSets, ","))
	}
	tw.Flush()
	fmt.Fprintln(out)

	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tFRAMES\tEND TIME\tFIELDS")
	for _, st := range sum.Steps {
		fmt.Fprintf(tw, "%s\t%d\t%g\t%s\n", st.Name, st.Frames, st.EndTime, strings.Join(st.Fields, ","))
	}
	tw.Flush()
}
