package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"idsync/pkg/config"
	"idsync/pkg/engine"
	"idsync/pkg/enrich"
	"idsync/pkg/metrics"
	"idsync/pkg/parser"
	"idsync/pkg/protect"
	"idsync/pkg/remote"
	"idsync/pkg/report"
	"idsync/pkg/schema"
)

// Options replaces collaborators that are otherwise built from config.
type Options struct {
	Now        func() time.Time
	RoleLookup protect.RoleLookup
	StateStore enrich.StateStore
}

// Result is everything a run produced.
type Result struct {
	RunID   string                 `json:"runId"`
	Delta   *engine.StateDelta     `json:"delta"`
	Items   []*enrich.ExternalItem `json:"items,omitempty"`
	Orphans []string               `json:"orphans,omitempty"`
	Report  *report.Report         `json:"report"`
	Metrics *metrics.Run           `json:"-"`
}

// Run performs one sync: read the desired state, fetch the remote snapshot,
// reconcile, apply protection, then serialize enrichment items and rotate
// the item state. Outputs configured in cfg.Output are written last.
func Run(ctx context.Context, cfg config.Config, opts Options, log zerolog.Logger) (*Result, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	started := opts.Now()
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()
	m := metrics.NewRun()

	reg, err := LoadRegistry(cfg.Schema.Extensions)
	if err != nil {
		return nil, err
	}

	norm := schema.NewNormalizer(log)
	norm.OnMalformed = m.MalformedValue

	data, err := os.ReadFile(cfg.Input.CSV)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	parsed, err := parser.StreamParse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cfg.Input.CSV, err)
	}
	built, err := parser.BuildDesiredRecords(reg, parsed, cfg.Input.Identity, log)
	if err != nil {
		return nil, err
	}
	m.RecordRows(len(built.Records))
	log.Info().
		Str("encoding", parsed.Encoding).
		Int("records", len(built.Records)).
		Int("warnings", len(built.Warnings)).
		Msg("desired state loaded")

	remoteIdentity := cfg.Remote.Identity
	if remoteIdentity == "" {
		remoteIdentity = reg.Classify(cfg.Input.Identity).RemotePath()
	}
	snapshot, err := remote.NewFetcher(cfg.Remote.Snapshot, remoteIdentity, log).Fetch(ctx)
	if err != nil {
		return nil, err
	}

	delta := engine.New(reg, norm, log).Reconcile(built.Records, snapshot)

	roles := opts.RoleLookup
	if roles == nil && cfg.Protection.RoleProtection {
		rf, err := remote.LoadRoleFile(cfg.Remote.Roles)
		if err != nil {
			return nil, err
		}
		roles = rf
	}
	filter, err := protect.New(cfg.Protection, roles, log)
	if err != nil {
		return nil, err
	}
	verdict, err := filter.Filter(ctx, delta.Candidates())
	if err != nil {
		return nil, err
	}
	engine.ApplyProtection(delta, verdict)
	m.RecordProtection(verdict)
	m.RecordDelta(delta.Summary)

	res := &Result{RunID: runID, Delta: delta, Metrics: m}
	enrichment := report.EnrichmentSummary{Enabled: cfg.Enrichment.Enabled}
	if cfg.Enrichment.Enabled {
		if err := runEnrichment(ctx, cfg.Enrichment, opts, reg, norm, built.Records, res, log); err != nil {
			return nil, err
		}
		enrichment.Items = len(res.Items)
		enrichment.Orphans = res.Orphans
		m.RecordEnrichment(len(res.Items), len(res.Orphans))
	}

	res.Report = report.Merge(report.Inputs{
		Delta:          delta,
		Enrichment:     enrichment,
		LookupFailures: verdict.LookupFailures,
		Warnings:       built.Warnings,
		Unrecognized:   built.Unrecognized,
	})

	m.RecordDuration(opts.Now().Sub(started).Seconds())
	if err := writeOutputs(cfg.Output, res); err != nil {
		return nil, err
	}

	log.Info().
		Int("create", delta.Summary.Create).
		Int("update", delta.Summary.Update).
		Int("delete", delta.Summary.Delete).
		Int("protected", delta.Summary.Protected).
		Msg("run complete")
	return res, nil
}

// LoadRegistry builds the attribute registry, merging the extensions file
// when one is given.
func LoadRegistry(extensions string) (*schema.Registry, error) {
	if extensions == "" {
		return schema.DefaultRegistry(), nil
	}
	ext, err := schema.LoadExtensionsYAML(extensions)
	if err != nil {
		return nil, err
	}
	return schema.BuildRegistry(ext)
}

// LoadDelta reads a delta file written by a previous run and compiles the
// report for it.
func LoadDelta(path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read delta: %w", err)
	}
	delta, err := engine.DecodeDelta(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return report.Merge(report.Inputs{Delta: delta}), nil
}

func runEnrichment(
	ctx context.Context,
	cfg config.EnrichmentConfig,
	opts Options,
	reg *schema.Registry,
	norm *schema.Normalizer,
	records []*schema.DesiredRecord,
	res *Result,
	log zerolog.Logger,
) error {
	res.Items = enrich.NewSerializer(reg, norm, log).SerializeAll(records)

	store := opts.StateStore
	if store == nil {
		var closeStore func()
		var err error
		store, closeStore, err = openStateStore(ctx, cfg)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
	}
	if store == nil {
		res.Orphans = []string{}
		return writeJSON(cfg.ItemsOut, res.Items)
	}

	prev, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if prev.ConnectionID != "" && prev.ConnectionID != cfg.ConnectionID {
		log.Warn().
			Str("stored", prev.ConnectionID).
			Str("configured", cfg.ConnectionID).
			Msg("item state belongs to another connection, ignoring it")
		prev = enrich.ItemState{}
	}
	res.Orphans = enrich.DetectOrphans(prev, res.Items)
	if len(res.Orphans) > 0 {
		log.Info().Int("orphans", len(res.Orphans)).Msg("enrichment items no longer produced")
	}

	if err := writeJSON(cfg.ItemsOut, res.Items); err != nil {
		return err
	}
	return store.Save(ctx, enrich.NextState(cfg.ConnectionID, res.Items, opts.Now()))
}

func openStateStore(ctx context.Context, cfg config.EnrichmentConfig) (enrich.StateStore, func(), error) {
	switch {
	case cfg.StateDSN != "":
		conn, err := pgx.Connect(ctx, cfg.StateDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect item state database: %w", err)
		}
		closeConn := func() { _ = conn.Close(context.Background()) }
		store := enrich.NewPGStore(conn, cfg.ConnectionID)
		if err := store.EnsureSchema(ctx); err != nil {
			closeConn()
			return nil, nil, err
		}
		return store, closeConn, nil
	case cfg.StatePath != "":
		return enrich.NewFileStore(cfg.StatePath), nil, nil
	default:
		return nil, nil, nil
	}
}

func writeOutputs(cfg config.OutputConfig, res *Result) error {
	if cfg.DeltaOut != "" {
		f, err := create(cfg.DeltaOut)
		if err != nil {
			return err
		}
		if err := engine.EncodeDelta(f, res.Delta); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if err := writeJSON(cfg.ReportOut, res.Report); err != nil {
		return err
	}
	if cfg.MetricsTextfile != "" {
		if err := mkdirFor(cfg.MetricsTextfile); err != nil {
			return err
		}
		if err := res.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := mkdirFor(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	if err := mkdirFor(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

func mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
