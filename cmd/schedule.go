package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/capaplan/capaplan/core/planfile"
	"github.com/capaplan/capaplan/core/scheduler"
	"github.com/capaplan/capaplan/infra/logger"
	"github.com/capaplan/capaplan/pkg/export"
)

var (
	planPath  string
	inFormat  string
	outFormat string
	outPath   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute a plan once and print it",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVarP(&planPath, "plan", "p", "plan.yaml", "plan input file (YAML or JSON), or - for stdin")
	scheduleCmd.Flags().StringVar(&inFormat, "in-format", "yaml", "input format when reading stdin: yaml or json")
	scheduleCmd.Flags().StringVarP(&outFormat, "format", "f", "json", "output format: json or csv")
	scheduleCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	var f *planfile.File
	var err error
	if planPath == "-" {
		f, err = planfile.Decode(cmd.InOrStdin(), inFormat)
	} else {
		f, err = planfile.Load(planPath)
	}
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	items, resources, err := f.Models()
	if err != nil {
		return err
	}

	plan, err := scheduler.New(logger.New("schedule-command")).Schedule(items, resources)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		out = file
	}
	switch outFormat {
	case "csv":
		return export.WriteCSV(out, plan)
	case "json":
		return export.WriteJSON(out, plan)
	default:
		return fmt.Errorf("unknown format %s", outFormat)
	}
}
