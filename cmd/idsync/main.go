package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"idsync/pkg/config"
	"idsync/pkg/enrich"
	"idsync/pkg/logging"
	"idsync/pkg/pipeline"
	"idsync/pkg/report"
)

func main() {
	configPath := flag.String("config", "", "path to idsync TOML config")
	csvPath := flag.String("csv", "", "desired state CSV (overrides input.csv)")
	snapshotPath := flag.String("snapshot", "", "remote snapshot JSON (overrides remote.snapshot)")
	rolesPath := flag.String("roles", "", "role membership JSON (overrides remote.roles)")
	deltaOut := flag.String("delta-out", "", "write the state delta JSON here (overrides output.delta_out)")
	noColor := flag.Bool("no-color", false, "disable coloured report output")
	jsonReport := flag.Bool("json", false, "print the report as JSON instead of text")
	validate := flag.Bool("validate", false, "validate config and schema, then exit")
	printSchema := flag.Bool("schema", false, "print the enrichment connection schema, then exit")
	initPath := flag.String("init", "", "write a starter config to this path, then exit")
	force := flag.Bool("force", false, "overwrite an existing file with -init")
	showDelta := flag.String("show-delta", "", "print the report for a saved delta file, then exit")
	flag.Parse()

	log := logging.ConfigureRuntime()

	if *initPath != "" {
		if err := config.WriteTemplate(*initPath, *force); err != nil {
			fatal(log, err)
		}
		log.Info().Str("path", *initPath).Msg("wrote config template")
		return
	}

	if *showDelta != "" {
		rep, err := pipeline.LoadDelta(*showDelta)
		if err != nil {
			fatal(log, err)
		}
		if err := printReport(rep, *jsonReport, *noColor); err != nil {
			fatal(log, err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(log, err)
	}
	override(&cfg.Input.CSV, *csvPath)
	override(&cfg.Remote.Snapshot, *snapshotPath)
	override(&cfg.Remote.Roles, *rolesPath)
	override(&cfg.Output.DeltaOut, *deltaOut)
	if *noColor {
		cfg.Output.NoColor = true
	}

	if *validate || *printSchema {
		reg, err := pipeline.LoadRegistry(cfg.Schema.Extensions)
		if err != nil {
			fatal(log, err)
		}
		if *printSchema {
			props := enrich.NewSerializer(reg, nil, log).Schema()
			if err := printJSON(props); err != nil {
				fatal(log, err)
			}
			return
		}
		if err := config.Validate(cfg); err != nil {
			fatal(log, err)
		}
		log.Info().Int("attributes", len(reg.Descriptors())).Msg("config and schema valid")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.Options{}, log)
	if err != nil {
		fatal(log, err)
	}

	if err := printReport(res.Report, *jsonReport, cfg.Output.NoColor); err != nil {
		fatal(log, err)
	}
}

func printReport(r *report.Report, asJSON, noColor bool) error {
	if asJSON {
		return printJSON(r)
	}
	return report.NewPrinter(os.Stdout, noColor).Render(r)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(log zerolog.Logger, err error) {
	log.Error().Err(err).Msg("idsync failed")
	os.Exit(1)
}
