// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// binjson converts structured data to binary JSON documents, inspects them,
// and keeps them in a local document store.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"github.com/xdg-go/binjson"
	"github.com/xdg-go/binjson/internal/blob"
	"github.com/xdg-go/binjson/internal/config"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// usageError marks errors caused by bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{fmt.Sprintf(format, args...)}
}

// env is what every subcommand runs with.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	args    string
	summary string
	run     func(e *env, args []string) error
}

var commands = map[string]command{
	"convert": {"[flags] <input>", "convert a data file to a binary document", runConvert},
	"inspect": {"[flags] <file>", "validate a binary document and describe it", runInspect},
	"put":     {"[flags] <name> <input>", "store a document under name", runPut},
	"get":     {"[flags] <name>", "print a stored document", runGet},
	"set":     {"<name> <key>=<json>...", "set members of a stored object", runSet},
	"ls":      {"", "list stored documents", runList},
	"rm":      {"<name>...", "delete stored documents", runRemove},
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("binjson", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	configPath := flags.String("config", os.Getenv("BINJSON_CONFIG"), "path to a YAML config file")
	storePath := flags.String("store", "", "path to the document database")
	compression := flags.String("compression", "", "compression for stored or sealed documents: none, lz4, zstd")
	verbose := flags.BoolP("verbose", "v", false, "log debug messages")
	flags.Usage = func() { printUsage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(stderr, flags)
		return exitUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "binjson: unknown command %q\n", rest[0])
		return exitUsage
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(stderr, "binjson: config: %v\n", err)
			return exitError
		}
	}
	if *storePath != "" {
		cfg.Store = *storePath
	}
	if *compression != "" {
		cfg.Compression = *compression
	}
	if *verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "binjson: %v\n", err)
		return exitUsage
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	binjson.SetLogger(logger)
	defer binjson.SetLogger(nil)

	e := &env{cfg: cfg, log: logger, stdin: stdin, stdout: stdout, stderr: stderr}
	if err := cmd.run(e, rest[1:]); err != nil {
		fmt.Fprintf(stderr, "binjson %s: %v\n", rest[0], err)
		var ue *usageError
		if errors.As(err, &ue) {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage:\n  binjson [global flags] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nCompression names: %v, %v, %v\n\nGlobal flags:\n", blob.None, blob.LZ4, blob.Zstd)
	flags.SetOutput(w)
	flags.PrintDefaults()
}
