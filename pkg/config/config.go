package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"idsync/pkg/protect"
	"idsync/pkg/schema"
)

type InputConfig struct {
	CSV      string `toml:"csv"`
	Identity string `toml:"identity"`
}

type RemoteConfig struct {
	Snapshot string `toml:"snapshot"`
	Roles    string `toml:"roles"`

	// Identity is the remote attribute holding the principal key. Empty
	// means the remote path of the input identity attribute.
	Identity string `toml:"identity"`
}

type SchemaConfig struct {
	Extensions string `toml:"extensions"`
}

type EnrichmentConfig struct {
	Enabled      bool   `toml:"enabled"`
	ConnectionID string `toml:"connection_id"`
	ItemsOut     string `toml:"items_out"`
	StatePath    string `toml:"state_path"`
	StateDSN     string `toml:"state_dsn"`
}

type OutputConfig struct {
	DeltaOut        string `toml:"delta_out"`
	ReportOut       string `toml:"report_out"`
	MetricsTextfile string `toml:"metrics_textfile"`
	NoColor         bool   `toml:"no_color"`
}

// Config is the full run configuration.
type Config struct {
	Input      InputConfig      `toml:"input"`
	Remote     RemoteConfig     `toml:"remote"`
	Schema     SchemaConfig     `toml:"schema"`
	Protection protect.Config   `toml:"protection"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Output     OutputConfig     `toml:"output"`
}

// Default returns the settings used for keys a config file leaves out.
func Default() Config {
	return Config{
		Input: InputConfig{Identity: schema.IdentityAttribute},
		Protection: protect.Config{
			RoleLookupConcurrency: protect.DefaultRoleLookupConcurrency,
		},
		Enrichment: EnrichmentConfig{ConnectionID: "idsync"},
	}
}

// Load reads path over Default. Only keys present in the file replace
// defaults; unknown keys are an error. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}

	overlay(&cfg, raw, meta)
	return cfg, nil
}

func overlay(cfg *Config, raw Config, meta toml.MetaData) {
	str := func(dst *string, v string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(v)
		}
	}
	flag := func(dst *bool, v bool, key ...string) {
		if meta.IsDefined(key...) {
			*dst = v
		}
	}
	list := func(dst *[]string, v []string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = normalizeList(v)
		}
	}

	str(&cfg.Input.CSV, raw.Input.CSV, "input", "csv")
	str(&cfg.Input.Identity, raw.Input.Identity, "input", "identity")

	str(&cfg.Remote.Snapshot, raw.Remote.Snapshot, "remote", "snapshot")
	str(&cfg.Remote.Roles, raw.Remote.Roles, "remote", "roles")
	str(&cfg.Remote.Identity, raw.Remote.Identity, "remote", "identity")

	str(&cfg.Schema.Extensions, raw.Schema.Extensions, "schema", "extensions")

	list(&cfg.Protection.Patterns, raw.Protection.Patterns, "protection", "patterns")
	list(&cfg.Protection.Denylist, raw.Protection.Denylist, "protection", "denylist")
	list(&cfg.Protection.Expressions, raw.Protection.Expressions, "protection", "expressions")
	flag(&cfg.Protection.RoleProtection, raw.Protection.RoleProtection, "protection", "role_protection")
	list(&cfg.Protection.ProtectedRoles, raw.Protection.ProtectedRoles, "protection", "protected_roles")
	if meta.IsDefined("protection", "role_lookup_concurrency") {
		cfg.Protection.RoleLookupConcurrency = raw.Protection.RoleLookupConcurrency
	}

	flag(&cfg.Enrichment.Enabled, raw.Enrichment.Enabled, "enrichment", "enabled")
	str(&cfg.Enrichment.ConnectionID, raw.Enrichment.ConnectionID, "enrichment", "connection_id")
	str(&cfg.Enrichment.ItemsOut, raw.Enrichment.ItemsOut, "enrichment", "items_out")
	str(&cfg.Enrichment.StatePath, raw.Enrichment.StatePath, "enrichment", "state_path")
	str(&cfg.Enrichment.StateDSN, raw.Enrichment.StateDSN, "enrichment", "state_dsn")

	str(&cfg.Output.DeltaOut, raw.Output.DeltaOut, "output", "delta_out")
	str(&cfg.Output.ReportOut, raw.Output.ReportOut, "output", "report_out")
	str(&cfg.Output.MetricsTextfile, raw.Output.MetricsTextfile, "output", "metrics_textfile")
	flag(&cfg.Output.NoColor, raw.Output.NoColor, "output", "no_color")
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks that cfg describes a runnable sync.
func Validate(cfg Config) error {
	var errs []error

	if cfg.Input.CSV == "" {
		errs = append(errs, errors.New("input.csv is required"))
	}
	if cfg.Input.Identity == "" {
		errs = append(errs, errors.New("input.identity must not be empty"))
	}
	if cfg.Remote.Snapshot == "" {
		errs = append(errs, errors.New("remote.snapshot is required"))
	}
	if cfg.Protection.RoleProtection {
		if cfg.Remote.Roles == "" {
			errs = append(errs, errors.New("protection.role_protection requires remote.roles"))
		}
		if len(cfg.Protection.ProtectedRoles) == 0 {
			errs = append(errs, errors.New("protection.role_protection requires protected_roles"))
		}
	}
	if cfg.Protection.RoleLookupConcurrency < 1 {
		errs = append(errs, errors.New("protection.role_lookup_concurrency must be at least 1"))
	}
	if cfg.Enrichment.Enabled {
		if cfg.Enrichment.ConnectionID == "" {
			errs = append(errs, errors.New("enrichment.connection_id is required"))
		}
		if cfg.Enrichment.StatePath != "" && cfg.Enrichment.StateDSN != "" {
			errs = append(errs, errors.New("enrichment.state_path and enrichment.state_dsn are mutually exclusive"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
