// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ontotrans/ontorec/internal/config"
	"github.com/ontotrans/ontorec/internal/stardog"

	log "github.com/sirupsen/logrus"
)

func ListDatabases(ctx context.Context, cfg config.OntorecConfig, out io.Writer) error {
	admin := stardog.NewAdmin(stardog.NewConnection(cfg.Stardog))
	databases, err := admin.ListDatabases(ctx)
	if err != nil {
		return err
	}
	for _, name := range databases {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}

func CreateDatabase(ctx context.Context, cfg config.OntorecConfig, cmd CreateCmd) error {
	conn := stardog.NewConnection(cfg.Stardog)
	created, err := stardog.NewAdmin(conn).CreateDatabase(ctx, cmd.Database)
	if err != nil {
		return err
	}
	if !cmd.InitEmmo {
		return nil
	}
	if !created {
		log.Warnf("not seeding %s since it already existed", cmd.Database)
		return nil
	}
	backend := stardog.NewBackend(ctx, conn, cmd.Database)
	defer backend.Close()
	seed := cfg.Server.SeedOntologyPath()
	if err := backend.Parse(ctx, stardog.ParseInput{Location: seed}, stardog.FormatTurtle); err != nil {
		return fmt.Errorf("failed to seed %s from %s: %w", cmd.Database, seed, err)
	}
	log.Infof("seeded %s from %s", cmd.Database, seed)
	return nil
}

func DropDatabase(ctx context.Context, cfg config.OntorecConfig, database string) error {
	return stardog.NewAdmin(stardog.NewConnection(cfg.Stardog)).RemoveDatabase(ctx, database)
}

func Load(ctx context.Context, cfg config.OntorecConfig, cmd LoadCmd) error {
	backend := stardog.NewBackend(ctx, stardog.NewConnection(cfg.Stardog), cmd.Database)
	defer backend.Close()
	if err := backend.Parse(ctx, stardog.ParseInput{Location: cmd.File}, stardog.FormatTurtle); err != nil {
		return err
	}
	log.Infof("loaded %s into %s", cmd.File, cmd.Database)
	return nil
}

func Export(ctx context.Context, cfg config.OntorecConfig, cmd ExportCmd, out io.Writer) error {
	backend := stardog.NewBackend(ctx, stardog.NewConnection(cfg.Stardog), cmd.Database)
	defer backend.Close()
	dest := stardog.Destination{Path: cmd.Output}
	if cmd.Output == "" {
		dest.Writer = out
	}
	_, err := backend.Serialize(ctx, stardog.Format(cmd.Format), dest)
	return err
}

// Query prints one tab separated line per row; unbound cells are left empty
func Query(ctx context.Context, cfg config.OntorecConfig, cmd QueryCmd, out io.Writer) error {
	backend := stardog.NewBackend(ctx, stardog.NewConnection(cfg.Stardog), cmd.Database)
	defer backend.Close()
	rows, err := backend.Query(ctx, cmd.Sparql, cmd.Reasoning)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, term := range row {
			if term != nil {
				cells[i] = term.N3()
			}
		}
		if _, err := fmt.Fprintln(out, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}
