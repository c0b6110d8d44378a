// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/trace"
	"strings"
	"syscall"

	"github.com/ontotrans/ontorec/internal/common/projectpath"
	"github.com/ontotrans/ontorec/internal/config"
	"github.com/ontotrans/ontorec/internal/opentelemetry"

	"github.com/alexflint/go-arg"
	log "github.com/sirupsen/logrus"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type ServeCmd struct{}
type DatabasesCmd struct{}
type CreateCmd struct {
	Database string `arg:"positional,required"`
	InitEmmo bool   `arg:"--init-emmo" help:"seed the new database with the configured seed ontology"`
}
type DropCmd struct {
	Database string `arg:"positional,required"`
}
type LoadCmd struct {
	Database string `arg:"positional,required"`
	File     string `arg:"positional,required" help:"turtle file to load"`
}
type ExportCmd struct {
	Database string `arg:"positional,required"`
	Format   string `arg:"--format" default:"turtle" help:"turtle or rdf"`
	Output   string `arg:"--output" help:"file to write to; stdout when empty"`
}
type QueryCmd struct {
	Database  string `arg:"positional,required"`
	Sparql    string `arg:"positional,required"`
	Reasoning bool   `arg:"--reasoning"`
}

type OntorecArgs struct {
	// Subcommands that can be run
	Serve     *ServeCmd     `arg:"subcommand:serve" help:"serve the http api"`
	Databases *DatabasesCmd `arg:"subcommand:databases" help:"list the databases on the stardog server"`
	Create    *CreateCmd    `arg:"subcommand:create" help:"create a database"`
	Drop      *DropCmd      `arg:"subcommand:drop" help:"drop a database"`
	Load      *LoadCmd      `arg:"subcommand:load" help:"load a turtle file into a database"`
	Export    *ExportCmd    `arg:"subcommand:export" help:"serialize a whole database"`
	Query     *QueryCmd     `arg:"subcommand:query" help:"run a sparql query and print every row"`

	// Flags that can be set for config particular services / operations
	config.StardogConfig
	config.ServerConfig
	config.AuthConfig

	// Flags that can be set which affect all operations
	LogLevel     string `arg:"--log-level,env:ONTOREC_LOG_LEVEL" default:"INFO"`
	Trace        bool   `arg:"--trace" help:"enable runtime tracing for performance analysis"`
	UseOtel      bool   `arg:"--use-otel"`
	OtelEndpoint string `arg:"--otel-endpoint" help:"OpenTelemetry endpoint"`
}

// ToStructuredConfig converts the args to a structured config
// that can be used for more config isolation
func (o OntorecArgs) ToStructuredConfig() config.OntorecConfig {
	return config.OntorecConfig{
		Stardog: o.StardogConfig,
		Server:  o.ServerConfig,
		Auth:    o.AuthConfig,
	}
}

type OntorecRunner struct {
	args OntorecArgs
	// where command output is written
	out io.Writer
}

func NewOntorecRunner(cliArgs []string) OntorecRunner {
	args := OntorecArgs{}
	const dummyBinaryName = "ontorec" // go-arg parses os.Args, which starts with the binary name
	os.Args = append([]string{dummyBinaryName}, cliArgs...)

	parser := arg.MustParse(&args)
	subCmd := parser.Subcommand()
	if subCmd == nil || subCmd == "" {
		log.Error("no subcommand provided")
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	return OntorecRunner{
		args: args,
		out:  os.Stdout,
	}
}

func (o OntorecRunner) Run(ctx context.Context) error {
	level, err := log.ParseLevel(o.args.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", o.args.LogLevel, err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if o.args.UseOtel || o.args.OtelEndpoint != "" {
		if o.args.OtelEndpoint == "" {
			o.args.OtelEndpoint = opentelemetry.DefaultTracingEndpoint
		}
		log.Infof("Starting opentelemetry traces and exporting to: %s", o.args.OtelEndpoint)
		if err := opentelemetry.InitTracer("ontorec", o.args.OtelEndpoint); err != nil {
			return fmt.Errorf("failed to start tracing: %w", err)
		}
		var span otelTrace.Span
		ctx, span = opentelemetry.SubSpanFromCtxWithName(ctx, strings.Join(os.Args, "_"))
		defer opentelemetry.Shutdown()
		defer span.End()
	}

	if o.args.Trace {
		filePath := filepath.Join(projectpath.Root, "trace.out")
		log.Infof("Trace enabled; Outputting to %s", filePath)
		f, err := os.Create(filePath)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		defer f.Close()
		if err := trace.Start(f); err != nil {
			return fmt.Errorf("failed to start runtime trace: %w", err)
		}
		defer trace.Stop()
	}

	cfg := o.args.ToStructuredConfig()
	switch {
	case o.args.Serve != nil:
		return Serve(ctx, cfg)
	case o.args.Databases != nil:
		return ListDatabases(ctx, cfg, o.out)
	case o.args.Create != nil:
		return CreateDatabase(ctx, cfg, *o.args.Create)
	case o.args.Drop != nil:
		return DropDatabase(ctx, cfg, o.args.Drop.Database)
	case o.args.Load != nil:
		return Load(ctx, cfg, *o.args.Load)
	case o.args.Export != nil:
		return Export(ctx, cfg, *o.args.Export, o.out)
	case o.args.Query != nil:
		return Query(ctx, cfg, *o.args.Query, o.out)
	default:
		return fmt.Errorf("unknown ontorec subcommand")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewOntorecRunner(os.Args[1:]).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
