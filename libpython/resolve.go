package libpython

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/reglet-dev/pybridge/domain/entities"
	"github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/domain/ports"
	"github.com/reglet-dev/pybridge/infrastructure/dl"
	"github.com/reglet-dev/pybridge/infrastructure/process"
)

// Option configures Resolve.
type Option func(*resolveConfig)

type resolveConfig struct {
	python       string
	libPython    string
	manageHome   bool
	probeTimeout time.Duration
	goos         string
	runner       ports.CommandRunner
	loader       ports.LibraryLoader
	fs           billy.Basic
	env          ports.Environment
	logger       *slog.Logger
}

func defaultResolveConfig() resolveConfig {
	return resolveConfig{
		manageHome:   true,
		probeTimeout: 30 * time.Second,
		goos:         runtime.GOOS,
		env:          OSEnvironment{},
	}
}

// WithPython sets the Python executable to investigate.
// The default is $PYTHON, then python3, then python.
func WithPython(path string) Option {
	return func(c *resolveConfig) {
		c.python = path
	}
}

// WithLibPython sets the library to try before the search order.
// The default is $LIBPYTHON.
func WithLibPython(path string) Option {
	return func(c *resolveConfig) {
		c.libPython = path
	}
}

// WithPythonHome enables or disables PYTHONHOME management.
func WithPythonHome(enabled bool) Option {
	return func(c *resolveConfig) {
		c.manageHome = enabled
	}
}

// WithProbeTimeout bounds each Python subprocess run.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *resolveConfig) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithPlatform overrides runtime.GOOS for naming and search rules.
func WithPlatform(goos string) Option {
	return func(c *resolveConfig) {
		c.goos = goos
	}
}

// WithRunner sets the subprocess runner.
func WithRunner(r ports.CommandRunner) Option {
	return func(c *resolveConfig) {
		c.runner = r
	}
}

// WithLoader sets the shared library loader.
func WithLoader(l ports.LibraryLoader) Option {
	return func(c *resolveConfig) {
		c.loader = l
	}
}

// WithFilesystem sets the filesystem used to check candidate paths.
func WithFilesystem(fs billy.Basic) Option {
	return func(c *resolveConfig) {
		c.fs = fs
	}
}

// WithEnvironment sets the environment read for PYTHON and LIBPYTHON and
// written for PYTHONHOME.
func WithEnvironment(env ports.Environment) Option {
	return func(c *resolveConfig) {
		c.env = env
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *resolveConfig) {
		c.logger = logger
	}
}

// Resolve locates libpython, loads it and binds the symbol table.
// Failures are reported as *errors.ResolutionError.
func Resolve(ctx context.Context, opts ...Option) (*Symbols, error) {
	sym, _, err := Diagnose(ctx, opts...)
	return sym, err
}

// Diagnose runs Resolve and also returns a report of every step, filled in
// as far as resolution got. The report is never nil.
func Diagnose(ctx context.Context, opts ...Option) (*Symbols, *entities.Report, error) {
	cfg := defaultResolveConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.runner == nil {
		cfg.runner = process.NewRunner(process.WithTimeout(cfg.probeTimeout))
	}
	if cfg.loader == nil {
		cfg.loader = dl.NewLoader()
	}
	if cfg.fs == nil {
		cfg.fs = osfs.New("/")
	}

	r := &resolver{cfg: cfg, report: &entities.Report{}}
	sym, err := r.resolve(ctx)
	if err != nil {
		r.report.Error = errors.ToErrorDetail(err)
		return nil, r.report, err
	}
	r.report.Library = sym.Library()
	r.report.Selection = sym.Selection()
	r.report.Flavor = sym.Flavor()
	return sym, r.report, nil
}

type resolver struct {
	cfg    resolveConfig
	report *entities.Report
}

func (r *resolver) resolve(ctx context.Context) (*Symbols, error) {
	logger := r.cfg.logger

	pyCfg, python, investigateErr := r.investigate(ctx)
	r.report.Python = python
	if investigateErr == nil {
		version, err := entities.ParseVersion(pyCfg.Value("VERSION"))
		if err != nil {
			logger.Debug("python version not reported", "error", err)
		}
		r.report.Version = version
		logger.Debug("python investigated", "python", python, "version", r.report.Version.String())
		if r.cfg.manageHome {
			r.report.PythonHome = configurePythonHome(ctx, r.cfg.runner, r.cfg.env, logger,
				python, pyCfg, r.cfg.goos, r.cfg.probeTimeout)
		}
	} else {
		logger.Debug("python investigation failed", "python", python, "error", investigateErr)
	}

	var tried []string
	var symbolErr error

	if override := r.override(); override != "" {
		tried = append(tried, override)
		sym, err := r.tryOverride(override)
		if err == nil {
			return sym, nil
		}
		logger.Warn("ignoring the wrong libpython location specified in LIBPYTHON", "path", override, "error", err)
		if isSymbolError(err) {
			symbolErr = err
		}
	}

	if investigateErr != nil {
		return nil, &errors.ResolutionError{Tried: tried, Err: investigateErr}
	}

	for _, path := range existing(r.cfg.fs, Candidates(pyCfg, r.cfg.goos)) {
		tried = append(tried, path)
		sym, err := r.load(path, entities.SourceSearch)
		if err == nil {
			return sym, nil
		}
		logger.Debug("libpython candidate rejected", "path", path, "error", err)
		if isSymbolError(err) {
			symbolErr = err
		}
	}

	var re *errors.ResolutionError
	if stderrors.As(symbolErr, &re) {
		return nil, &errors.ResolutionError{Symbol: re.Symbol, Tried: tried}
	}
	return nil, &errors.ResolutionError{Tried: tried}
}

// investigate tries each Python executable until one reports its config.
func (r *resolver) investigate(ctx context.Context) (entities.PythonConfig, string, error) {
	pythons := []string{"python3", "python"}
	if r.cfg.python != "" {
		pythons = []string{r.cfg.python}
	} else if v, ok := r.cfg.env.LookupEnv("PYTHON"); ok && v != "" {
		pythons = []string{v}
	}

	var lastErr error
	for _, python := range pythons {
		cfg, err := Investigate(ctx, r.cfg.runner, r.cfg.env, python, r.cfg.probeTimeout)
		if err == nil {
			return cfg, python, nil
		}
		lastErr = err
	}
	return nil, pythons[len(pythons)-1], lastErr
}

func (r *resolver) override() string {
	if r.cfg.libPython != "" {
		return r.cfg.libPython
	}
	v, _ := r.cfg.env.LookupEnv("LIBPYTHON")
	return v
}

func (r *resolver) tryOverride(path string) (*Symbols, error) {
	if !isFile(r.cfg.fs, path) {
		err := fmt.Errorf("%s is not a file", path)
		r.report.Candidates = append(r.report.Candidates,
			entities.Candidate{Path: path, Source: entities.SourceOverride, Error: err.Error()})
		return nil, err
	}
	return r.load(path, entities.SourceOverride)
}

// load opens path and binds it. A library missing a mandatory symbol is
// closed again.
func (r *resolver) load(path string, source entities.CandidateSource) (*Symbols, error) {
	candidate := entities.Candidate{Path: path, Source: source}
	sym, err := r.bind(path)
	if err != nil {
		candidate.Error = err.Error()
	}
	r.report.Candidates = append(r.report.Candidates, candidate)
	return sym, err
}

func (r *resolver) bind(path string) (*Symbols, error) {
	lib, err := r.cfg.loader.Open(path)
	if err != nil {
		return nil, err
	}

	selection, err := SelectSymbols(func(name string) bool {
		_, ok := lib.Lookup(name)
		return ok
	})
	if err != nil {
		_ = lib.Close()
		return nil, err
	}

	sym, err := bindSymbols(lib, r.report.Version, selection)
	if err != nil {
		_ = lib.Close()
		return nil, err
	}
	return sym, nil
}

func isSymbolError(err error) bool {
	var re *errors.ResolutionError
	return stderrors.As(err, &re) && re.Symbol != ""
}
