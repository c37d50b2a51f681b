// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package config loads the binjson command's YAML configuration file.
//
// Values in the file override Default; command-line flags override the
// file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xdg-go/binjson"
	"github.com/xdg-go/binjson/internal/blob"
	"gopkg.in/yaml.v3"
)

// Config is the command configuration.
type Config struct {
	// Store is the path of the document database.
	Store string `yaml:"store"`

	// Compression is applied to documents written to the store or to
	// sealed output files: none, lz4 or zstd.
	Compression string `yaml:"compression"`

	// MaxDepth bounds container nesting when reading input files.
	MaxDepth int `yaml:"max_depth"`

	// Compaction controls when objects edited by the command rebuild
	// their buffers.
	Compaction CompactionConfig `yaml:"compaction"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// CompactionConfig mirrors binjson.CompactionPolicy.  A zero divisor turns
// automatic compaction off.
type CompactionConfig struct {
	MinStale int `yaml:"min_stale"`
	Divisor  int `yaml:"divisor"`
}

// Default returns the built-in configuration.
func Default() *Config {
	root := ".binjson"
	if dir, err := os.UserCacheDir(); err == nil {
		root = filepath.Join(dir, "binjson")
	}
	return &Config{
		Store:       filepath.Join(root, "documents.db"),
		Compression: "zstd",
		MaxDepth:    binjson.DefaultMaxDepth,
		Compaction: CompactionConfig{
			MinStale: binjson.DefaultCompactionPolicy.MinStale,
			Divisor:  binjson.DefaultCompactionPolicy.Divisor,
		},
	}
}

// LoadFile reads path over Default.  Unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := blob.ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.Compaction.MinStale < 0 || c.Compaction.Divisor < 0 {
		return fmt.Errorf("compaction values must not be negative")
	}
	if c.Store == "" {
		return errors.New("store path is empty")
	}
	return nil
}

// CompressionTag returns the parsed Compression setting.
func (c *Config) CompressionTag() blob.Compression {
	tag, _ := blob.ParseCompression(c.Compression)
	return tag
}

// Policy returns the compaction policy for edited objects.
func (c *Config) Policy() binjson.CompactionPolicy {
	return binjson.CompactionPolicy{
		MinStale: c.Compaction.MinStale,
		Divisor:  c.Compaction.Divisor,
	}
}
