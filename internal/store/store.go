// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package store keeps named binary documents in a bbolt database.  Each
// document is stored as a sealed blob, so reads verify the content digest.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xdg-go/binjson"
	"github.com/xdg-go/binjson/internal/blob"
	"go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// ErrNotFound is returned for names with no stored document.
var ErrNotFound = errors.New("store: document not found")

// Options configures Open.
type Options struct {
	// Timeout bounds the wait for the database file lock.  Zero means
	// ten seconds.
	Timeout time.Duration
	// NoSync skips fsync after each commit; for tests.
	NoSync bool
	// Logger receives debug records for writes.  Nil means slog.Default.
	Logger *slog.Logger
}

// Entry describes a stored document.
type Entry struct {
	Name        string
	Size        int
	StoredSize  int
	Compression blob.Compression
	Digest      blob.Hash
}

// Store is a bbolt-backed document store.  It is safe for concurrent use.
type Store struct {
	db  *bbolt.DB
	log *slog.Logger
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opts.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}
	bopt.NoSync = opts.NoSync
	bopt.FreelistType = bbolt.FreelistMapType

	db, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log.With("store", path)}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put validates raw as a binary document and stores it under name,
// replacing any previous document.
func (s *Store) Put(name string, raw []byte, c blob.Compression) (Entry, error) {
	if name == "" {
		return Entry{}, errors.New("store: empty document name")
	}
	if _, err := binjson.Load(raw); err != nil {
		return Entry{}, fmt.Errorf("store: %s: %w", name, err)
	}
	sealed, err := blob.Seal(raw, c)
	if err != nil {
		return Entry{}, fmt.Errorf("store: %s: %w", name, err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(documentsBucket).Put([]byte(name), sealed)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store: %s: %w", name, err)
	}
	e, err := entry(name, sealed)
	if err != nil {
		return Entry{}, err
	}
	s.log.Debug("stored document", "name", name, "size", e.Size, "stored", e.StoredSize,
		"compression", e.Compression, "digest", e.Digest.Short())
	return e, nil
}

// Get returns the raw document stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		sealed := tx.Bucket(documentsBucket).Get([]byte(name))
		if sealed == nil {
			return ErrNotFound
		}
		// Open copies, so raw outlives the transaction.
		var err error
		raw, err = blob.Open(sealed)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", name, err)
	}
	return raw, nil
}

// Delete removes the document stored under name.
func (s *Store) Delete(name string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		if b.Get([]byte(name)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("store: %s: %w", name, err)
	}
	s.log.Debug("deleted document", "name", name)
	return nil
}

// List describes every stored document in name order.
func (s *Store) List() ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(k, v []byte) error {
			e, err := entry(string(k), v)
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func entry(name string, sealed []byte) (Entry, error) {
	h, err := blob.ReadHeader(sealed)
	if err != nil {
		return Entry{}, fmt.Errorf("store: %s: %w", name, err)
	}
	return Entry{
		Name:        name,
		Size:        int(h.RawSize),
		StoredSize:  len(sealed),
		Compression: h.Compression,
		Digest:      h.Digest,
	}, nil
}
