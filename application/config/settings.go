package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/pybridge/domain/errors"
	"github.com/reglet-dev/pybridge/domain/ports"
	"github.com/reglet-dev/pybridge/infrastructure/parser"
	"github.com/reglet-dev/pybridge/libpython"
	pblog "github.com/reglet-dev/pybridge/log"
)

// Environment variables read by Load.
const (
	EnvPython    = "PYTHON"
	EnvLibPython = "LIBPYTHON"
	EnvLogLevel  = "PYBRIDGE_LOG_LEVEL"
	EnvLogFormat = "PYBRIDGE_LOG_FORMAT"
)

// Settings configures interpreter discovery and logging.
type Settings struct {
	Python           string        `json:"python,omitempty" jsonschema:"description=Python executable to investigate; defaults to python3 then python"`
	LibPython        string        `json:"libpython,omitempty" validate:"omitempty,abspath" jsonschema:"description=Absolute path of a libpython to try before the discovered candidates"`
	ManagePythonHome bool          `json:"manage_python_home" jsonschema:"description=Set PYTHONHOME from the investigated prefixes when it is unset,default=true"`
	ProbeTimeout     time.Duration `json:"probe_timeout" validate:"min=100ms,max=10m" jsonschema:"description=Timeout for each python subprocess in nanoseconds; files accept a duration string such as 5s"`
	LogLevel         string        `json:"log_level" validate:"oneof=debug info warn warning error" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error,default=info"`
	LogFormat        string        `json:"log_format" validate:"oneof=text json" jsonschema:"enum=text,enum=json,default=text"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		ManagePythonHome: true,
		ProbeTimeout:     10 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// validate is a package-level singleton; validators cache struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
		return filepath.IsAbs(fl.Field().String())
	})
	return v
}

// Validate checks s against its validation tags.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var field string
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			field = ve[0].Field()
		}
		return &errors.ConfigError{Field: field, Err: err}
	}
	return nil
}

// ResolveOptions maps s onto libpython.Resolve options.
func (s Settings) ResolveOptions() []libpython.Option {
	opts := []libpython.Option{
		libpython.WithPythonHome(s.ManagePythonHome),
		libpython.WithProbeTimeout(s.ProbeTimeout),
	}
	if s.Python != "" {
		opts = append(opts, libpython.WithPython(s.Python))
	}
	if s.LibPython != "" {
		opts = append(opts, libpython.WithLibPython(s.LibPython))
	}
	return opts
}

// Logger builds a logger writing to w with the configured level and format.
func (s Settings) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := pblog.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, &errors.ConfigError{Field: "log_level", Err: err}
	}
	return pblog.New(pblog.WithWriter(w), pblog.WithLevel(level), pblog.WithJSON(s.LogFormat == "json")), nil
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	fs  billy.Filesystem
	env ports.Environment
}

func defaultLoadConfig() loadConfig {
	return loadConfig{
		fs:  osfs.New(""),
		env: libpython.OSEnvironment{},
	}
}

// WithFilesystem reads settings files from fs instead of the OS.
func WithFilesystem(fs billy.Filesystem) LoadOption {
	return func(c *loadConfig) {
		c.fs = fs
	}
}

// WithEnvironment reads overrides from env instead of the process environment.
func WithEnvironment(env ports.Environment) LoadOption {
	return func(c *loadConfig) {
		c.env = env
	}
}

// Load builds Settings from the defaults, then the file at path (skipped
// when path is empty), then the environment, and validates the result.
func Load(path string, opts ...LoadOption) (Settings, error) {
	cfg := defaultLoadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := Defaults()
	if path != "" {
		values, err := readFile(cfg.fs, path)
		if err != nil {
			return Settings{}, err
		}
		if err := s.apply(values); err != nil {
			return Settings{}, err
		}
	}
	s.applyEnv(cfg.env)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func parserFor(path string) (ports.SettingsParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parser.NewYamlSettingsParser(), nil
	case ".toml":
		return parser.NewTomlSettingsParser(), nil
	}
	return nil, &errors.ConfigError{Err: fmt.Errorf("unsupported settings file %q: want .yaml, .yml or .toml", path)}
}

func readFile(fs billy.Filesystem, path string) (Values, error) {
	p, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, &errors.ConfigError{Err: fmt.Errorf("read %s: %w", path, err)}
	}
	values, err := p.Parse(data)
	if err != nil {
		return nil, &errors.ConfigError{Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	return Values(values), nil
}

var knownKeys = map[string]bool{
	"python": true, "libpython": true, "manage_python_home": true,
	"probe_timeout": true, "log_level": true, "log_format": true,
}

// apply overlays decoded file values onto s. Unknown keys are rejected.
func (s *Settings) apply(values Values) error {
	var unknown []string
	for k := range values {
		if !knownKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &errors.ConfigError{Field: unknown[0], Err: fmt.Errorf("unknown settings %s", strings.Join(unknown, ", "))}
	}

	strs := map[string]*string{
		"python":     &s.Python,
		"libpython":  &s.LibPython,
		"log_level":  &s.LogLevel,
		"log_format": &s.LogFormat,
	}
	for key, dst := range strs {
		v, ok, err := values.String(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	if v, ok, err := values.Bool("manage_python_home"); err != nil {
		return err
	} else if ok {
		s.ManagePythonHome = v
	}

	if d, ok, err := values.Duration("probe_timeout"); err != nil {
		return err
	} else if ok {
		s.ProbeTimeout = d
	}
	return nil
}

func (s *Settings) applyEnv(env ports.Environment) {
	if v, ok := env.LookupEnv(EnvPython); ok && v != "" {
		s.Python = v
	}
	if v, ok := env.LookupEnv(EnvLibPython); ok && v != "" {
		s.LibPython = v
	}
	if v, ok := env.LookupEnv(EnvLogLevel); ok && v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v, ok := env.LookupEnv(EnvLogFormat); ok && v != "" {
		s.LogFormat = strings.ToLower(v)
	}
}
