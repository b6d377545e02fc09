package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/pybridge/application/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "schema [" + strings.Join(schema.Names(), "|") + "]",
		Short:     "Print the JSON schema of the settings file or the doctor report",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: schema.Names(),
		RunE: func(_ *cobra.Command, args []string) error {
			name := "settings"
			if len(args) == 1 {
				name = args[0]
			}
			data, err := schema.Named(name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, string(data))
			return err
		},
	}
}
