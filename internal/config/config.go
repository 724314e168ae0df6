// Package config loads and validates the pipeline configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/camcast3/releasegate/internal/failure"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "RELEASEGATE"

// Defaults for the optional tunables.
const (
	DefaultRolloutTimeout   = 600 * time.Second
	DefaultReadyTimeout     = 120 * time.Second
	DefaultReadyInterval    = 3 * time.Second
	DefaultSmokeTimeout     = 15 * time.Second
	DefaultScheme           = "https"
	DefaultSmokeQuery       = "ping"
	DefaultCheckConcurrency = 1
)

// Config is the validated configuration shared by the preflight and deploy pipelines.
// It is built once by Load and never modified afterwards.
type Config struct {
	Namespace       string   `mapstructure:"namespace"`
	Release         string   `mapstructure:"helm_release"`
	Chart           string   `mapstructure:"helm_chart"`
	ValuesFile      string   `mapstructure:"values_file"`
	IngressHost     string   `mapstructure:"ingress_host"`
	OCIRefs         []string `mapstructure:"oci_refs"`
	RequiredSecrets []string `mapstructure:"required_secrets"`
	RequiredCRDs    []string `mapstructure:"required_crds"`
	TerraformDir    string   `mapstructure:"terraform_dir"`

	RolloutTimeout   time.Duration `mapstructure:"rollout_timeout"`
	ReadyTimeout     time.Duration `mapstructure:"ready_timeout"`
	ReadyInterval    time.Duration `mapstructure:"ready_interval"`
	SmokeTimeout     time.Duration `mapstructure:"smoke_timeout"`
	Scheme           string        `mapstructure:"scheme"`
	SmokeQuery       string        `mapstructure:"smoke_query"`
	CheckConcurrency int           `mapstructure:"check_concurrency"`
}

// keys lists every configuration key so each one can be overridden from the environment.
var keys = []string{
	"namespace", "helm_release", "helm_chart", "values_file", "ingress_host",
	"oci_refs", "required_secrets", "required_crds", "terraform_dir",
	"rollout_timeout", "ready_timeout", "ready_interval", "smoke_timeout",
	"scheme", "smoke_query", "check_concurrency",
}

// Load reads the configuration file at path, applies RELEASEGATE_* environment
// overrides and validates the result. Any problem is returned as an *Error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("rollout_timeout", DefaultRolloutTimeout.String())
	v.SetDefault("ready_timeout", DefaultReadyTimeout.String())
	v.SetDefault("ready_interval", DefaultReadyInterval.String())
	v.SetDefault("smoke_timeout", DefaultSmokeTimeout.String())
	v.SetDefault("scheme", DefaultScheme)
	v.SetDefault("smoke_query", DefaultSmokeQuery)
	v.SetDefault("check_concurrency", DefaultCheckConcurrency)

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	v.SetEnvPrefix(EnvPrefix)
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, &Error{Path: path, Err: err}
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg.RequiredSecrets = dedupe(cfg.RequiredSecrets)
	cfg.RequiredCRDs = dedupe(cfg.RequiredCRDs)

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, &Error{Path: path, Problems: problems}
	}
	return &cfg, nil
}

// FieldError describes one invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// Validate returns every problem found; nil means the configuration is usable.
func (c *Config) Validate() []FieldError {
	var problems []FieldError
	add := func(field, format string, args ...any) {
		problems = append(problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	required := []struct {
		field string
		value string
	}{
		{"namespace", c.Namespace},
		{"helm_release", c.Release},
		{"helm_chart", c.Chart},
		{"values_file", c.ValuesFile},
		{"ingress_host", c.IngressHost},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			add(r.field, "is required")
		}
	}

	if c.Chart != "" {
		if _, err := os.Stat(c.Chart); err != nil {
			add("helm_chart", "file not found: %s", c.Chart)
		}
	}
	if c.ValuesFile != "" {
		if fi, err := os.Stat(c.ValuesFile); err != nil {
			add("values_file", "file not found: %s", c.ValuesFile)
		} else if fi.IsDir() {
			add("values_file", "is a directory: %s", c.ValuesFile)
		}
	}
	if c.TerraformDir != "" {
		if fi, err := os.Stat(c.TerraformDir); err != nil || !fi.IsDir() {
			add("terraform_dir", "directory not found: %s", c.TerraformDir)
		}
	}
	if strings.Contains(c.IngressHost, "/") {
		add("ingress_host", "must be a hostname, not a URL: %s", c.IngressHost)
	}
	for i, ref := range c.OCIRefs {
		if strings.TrimSpace(ref) == "" {
			add(fmt.Sprintf("oci_refs[%d]", i), "must not be empty")
		}
	}

	if c.Scheme != "http" && c.Scheme != "https" {
		add("scheme", "must be http or https")
	}
	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"rollout_timeout", c.RolloutTimeout},
		{"ready_timeout", c.ReadyTimeout},
		{"ready_interval", c.ReadyInterval},
		{"smoke_timeout", c.SmokeTimeout},
	} {
		if d.value <= 0 {
			add(d.field, "must be positive")
		}
	}
	if c.RolloutTimeout > 0 && c.RolloutTimeout < time.Second {
		add("rollout_timeout", "must be at least 1s")
	}
	if c.CheckConcurrency < 1 {
		add("check_concurrency", "must be at least 1")
	}
	return problems
}

// BaseURL is the public base URL of the deployed service.
func (c *Config) BaseURL() string {
	return c.Scheme + "://" + c.IngressHost
}

// Error is returned by Load for any configuration problem.
type Error struct {
	Path     string
	Problems []FieldError
	// Err is set when the file could not be read or decoded.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %s: %v", e.Path, e.Err)
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Path, strings.Join(msgs, "; "))
}

func (e *Error) Unwrap() error { return e.Err }

// FailureKind implements failure.Classified.
func (e *Error) FailureKind() failure.Kind { return failure.ConfigInvalid }

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
