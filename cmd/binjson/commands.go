// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/xdg-go/binjson"
	"github.com/xdg-go/binjson/internal/blob"
	"github.com/xdg-go/binjson/internal/codec"
	"github.com/xdg-go/binjson/internal/store"
)

func newFlags(e *env, name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(e.stderr)
	return flags
}

// parseFlags parses args and checks the positional argument count lies in
// [lo, hi]; hi < 0 means unbounded.
func parseFlags(flags *pflag.FlagSet, args []string, lo, hi int) ([]string, error) {
	if err := flags.Parse(args); err != nil {
		return nil, &usageError{err.Error()}
	}
	rest := flags.Args()
	if len(rest) < lo || (hi >= 0 && len(rest) > hi) {
		return nil, usagef("wrong number of arguments")
	}
	return rest, nil
}

func readInput(e *env, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(e.stdin)
	}
	return os.ReadFile(path)
}

// toDocument turns input bytes into a raw binary document.  Sealed blobs
// are opened, raw documents are used as they are and anything else is
// decoded as format, or by the extension of path when format is empty.
func toDocument(e *env, data []byte, path, format string) ([]byte, error) {
	if blob.IsSealed(data) {
		return blob.Open(data)
	}
	if _, err := binjson.Load(data); err == nil {
		return data, nil
	}

	var f codec.Format
	var err error
	switch {
	case format != "":
		f, err = codec.ParseFormat(format)
	case path == "-":
		err = errors.New("--format is required when reading standard input")
	default:
		f, err = codec.FormatFromPath(path)
	}
	if err != nil {
		return nil, &usageError{err.Error()}
	}

	tree, err := codec.Decoder{MaxDepth: e.cfg.MaxDepth}.Decode(f, data)
	if err != nil {
		return nil, err
	}
	v, err := binjson.FromJSONValue(tree)
	if err != nil {
		return nil, err
	}
	defer v.Release()
	raw, err := v.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("top-level value must be an array or object: %w", err)
	}
	e.log.Debug("converted input", "path", path, "format", f, "size", len(raw))
	return raw, nil
}

func writeOutput(e *env, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := e.stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printJSON(w io.Writer, v binjson.Value) error {
	out, err := json.MarshalIndent(v.ToJSON(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

func openStore(e *env) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(e.cfg.Store), 0o755); err != nil {
		return nil, err
	}
	return store.Open(e.cfg.Store, store.Options{Logger: e.log})
}

func runConvert(e *env, args []string) error {
	flags := newFlags(e, "convert")
	format := flags.StringP("format", "f", "", "input format: json, jsonc, yaml, cbor, msgpack, bson")
	output := flags.StringP("output", "o", "", "output file (default standard output)")
	seal := flags.Bool("seal", false, "compress and frame the output with a digest")
	rest, err := parseFlags(flags, args, 1, 1)
	if err != nil {
		return err
	}

	data, err := readInput(e, rest[0])
	if err != nil {
		return err
	}
	raw, err := toDocument(e, data, rest[0], *format)
	if err != nil {
		return err
	}
	if *seal {
		if raw, err = blob.Seal(raw, e.cfg.CompressionTag()); err != nil {
			return err
		}
	}
	return writeOutput(e, *output, raw)
}

func runInspect(e *env, args []string) error {
	flags := newFlags(e, "inspect")
	asJSON := flags.Bool("json", false, "print the document as JSON")
	rest, err := parseFlags(flags, args, 1, 1)
	if err != nil {
		return err
	}

	data, err := readInput(e, rest[0])
	if err != nil {
		return err
	}
	raw := data
	if blob.IsSealed(data) {
		h, err := blob.ReadHeader(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "sealed:      %d bytes, %v\n", len(data), h.Compression)
		if raw, err = blob.Open(data); err != nil {
			return err
		}
	}
	v, err := binjson.Load(raw)
	if err != nil {
		return err
	}
	defer v.Release()

	fmt.Fprintf(e.stdout, "kind:        %v\n", v.Kind())
	fmt.Fprintf(e.stdout, "length:      %d\n", v.Len())
	fmt.Fprintf(e.stdout, "size:        %d bytes\n", len(raw))
	fmt.Fprintf(e.stdout, "digest:      %v\n", blob.Digest(raw))
	if *asJSON {
		return printJSON(e.stdout, v)
	}
	return nil
}

func runPut(e *env, args []string) error {
	flags := newFlags(e, "put")
	format := flags.StringP("format", "f", "", "input format when it can't be told from the file name")
	rest, err := parseFlags(flags, args, 2, 2)
	if err != nil {
		return err
	}

	data, err := readInput(e, rest[1])
	if err != nil {
		return err
	}
	raw, err := toDocument(e, data, rest[1], *format)
	if err != nil {
		return err
	}
	s, err := openStore(e)
	if err != nil {
		return err
	}
	defer s.Close()
	entry, err := s.Put(rest[0], raw, e.cfg.CompressionTag())
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s %d %v %s\n", entry.Name, entry.Size, entry.Compression, entry.Digest.Short())
	return nil
}

func runGet(e *env, args []string) error {
	flags := newFlags(e, "get")
	asJSON := flags.Bool("json", false, "print the document as JSON")
	output := flags.StringP("output", "o", "", "output file (default standard output)")
	rest, err := parseFlags(flags, args, 1, 1)
	if err != nil {
		return err
	}

	s, err := openStore(e)
	if err != nil {
		return err
	}
	defer s.Close()
	raw, err := s.Get(rest[0])
	if err != nil {
		return err
	}
	if !*asJSON {
		return writeOutput(e, *output, raw)
	}
	v, err := binjson.Load(raw)
	if err != nil {
		return err
	}
	defer v.Release()
	out, err := json.MarshalIndent(v.ToJSON(), "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(e, *output, append(out, '\n'))
}

func runSet(e *env, args []string) error {
	rest, err := parseFlags(newFlags(e, "set"), args, 2, -1)
	if err != nil {
		return err
	}

	s, err := openStore(e)
	if err != nil {
		return err
	}
	defer s.Close()
	raw, err := s.Get(rest[0])
	if err != nil {
		return err
	}
	v, err := binjson.Load(raw)
	if err != nil {
		return err
	}
	if v.Kind() != binjson.KindObject {
		v.Release()
		return fmt.Errorf("%s is a stored %v, not an object", rest[0], v.Kind())
	}
	o := v.ToObject()
	v.Release()
	defer o.Release()
	o.SetCompactionPolicy(e.cfg.Policy())

	for _, arg := range rest[1:] {
		key, text, ok := strings.Cut(arg, "=")
		if !ok {
			return usagef("%q is not key=value", arg)
		}
		tree, err := binjson.ParseDepth([]byte(text), e.cfg.MaxDepth)
		if err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		val, err := binjson.FromJSONValue(tree)
		if err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		err = o.Insert(key, val)
		val.Release()
		if err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
		e.log.Debug("set member", "name", rest[0], "key", key, "stale", o.StaleCount())
	}

	o.Compact()
	v = binjson.ObjectValue(o)
	raw, err = v.MarshalBinary()
	v.Release()
	if err != nil {
		return err
	}
	entry, err := s.Put(rest[0], raw, e.cfg.CompressionTag())
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s %d %v %s\n", entry.Name, entry.Size, entry.Compression, entry.Digest.Short())
	return nil
}

func runList(e *env, args []string) error {
	if _, err := parseFlags(newFlags(e, "ls"), args, 0, 0); err != nil {
		return err
	}
	s, err := openStore(e)
	if err != nil {
		return err
	}
	defer s.Close()
	entries, err := s.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tSTORED\tCOMPRESSION\tDIGEST")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%s\n", entry.Name, entry.Size, entry.StoredSize, entry.Compression, entry.Digest.Short())
	}
	return tw.Flush()
}

func runRemove(e *env, args []string) error {
	rest, err := parseFlags(newFlags(e, "rm"), args, 1, -1)
	if err != nil {
		return err
	}
	s, err := openStore(e)
	if err != nil {
		return err
	}
	defer s.Close()
	for _, name := range rest {
		if err := s.Delete(name); err != nil {
			return err
		}
	}
	return nil
}
