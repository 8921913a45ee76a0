// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "errors"

// ErrNotInitialized is returned by package-level helpers when New has not
// been called yet.
var ErrNotInitialized = errors.New("db: store not initialized")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("db: record not found")
