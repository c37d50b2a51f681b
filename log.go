// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"errors"
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

// SetLogger sets the logger used for diagnostics.  A nil logger restores
// slog.Default().
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// warnCapacity logs a rejected write and passes err through.
func warnCapacity(op string, err error) error {
	var ce *CapacityError
	if errors.As(err, &ce) {
		log().Warn("binjson: write rejected, document would exceed maximum size",
			"op", op, "used", ce.Used, "reserve", ce.Reserve, "limit", ce.Limit)
	}
	return err
}
