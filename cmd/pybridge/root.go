package main

import (
	"io"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/reglet-dev/pybridge/application/config"
)

// app carries state shared by the subcommands.
type app struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
	fs         billy.Filesystem
	loadOpts   []config.LoadOption

	settings config.Settings
	logger   *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer, loadOpts ...config.LoadOption) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, fs: osfs.New(""), loadOpts: loadOpts}

	cmd := &cobra.Command{
		Use:          "pybridge",
		Short:        "Locate, diagnose and run the embedded CPython interpreter",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "settings file (.yaml, .yml or .toml)")

	cmd.AddCommand(newDoctorCmd(a), newExecCmd(a), newSchemaCmd(a))
	return cmd
}

func (a *app) load() error {
	opts := append([]config.LoadOption{config.WithFilesystem(a.fs)}, a.loadOpts...)
	s, err := config.Load(a.configPath, opts...)
	if err != nil {
		return err
	}
	logger, err := s.Logger(a.stderr)
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = logger
	return nil
}
