package main

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/reglet-dev/pybridge"
	pblog "github.com/reglet-dev/pybridge/log"
)

// resultName is the __main__ global whose repr exec prints.
const resultName = "_"

func newExecCmd(a *app) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "exec (-c CODE | FILE)",
		Short: "Run Python code in __main__ and print the repr of _ if the code sets it",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			if (code == "") == (len(args) == 0) {
				return errors.New("exactly one of -c CODE or FILE is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src := code
			if len(args) == 1 {
				data, err := util.ReadFile(a.fs, args[0])
				if err != nil {
					return err
				}
				src = string(data)
			}
			return a.exec(cmd, src)
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "program passed in as a string")
	return cmd
}

func (a *app) exec(cmd *cobra.Command, src string) error {
	b, err := pybridge.Start(cmd.Context(),
		pybridge.WithLogger(a.logger),
		pybridge.WithResolveOptions(a.settings.ResolveOptions()...),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	fwd, err := pblog.Forward(b, a.logger)
	if err != nil {
		a.logger.Warn("python logging is not forwarded", "error", err)
	} else {
		defer fwd.Close()
	}

	if err := b.Exec(src); err != nil {
		return err
	}

	result, ok, err := b.Global(resultName)
	if err != nil || !ok {
		return err
	}
	return b.Do(func() error {
		defer result.Release()
		if result.IsNone() {
			return nil
		}
		repr, err := b.Symbols().ReprString(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.stdout, repr)
		return err
	})
}
