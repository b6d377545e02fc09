package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/libpython"
)

func newDoctorCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report which libpython would be loaded and how its symbols bind",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q: want json or yaml", format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := append(a.settings.ResolveOptions(), libpython.WithLogger(a.logger))
			_, report, err := libpython.Diagnose(cmd.Context(), opts...)
			if werr := writeReport(a, format, report); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}

func writeReport(a *app, format string, report *entities.Report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
