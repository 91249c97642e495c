// Package sentinel holds the infrastructure facts stores report. Services
// translate them into domain errors; input validation belongs in
// pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound means the store holds nothing under the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent writer kept winning and the write gave up.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable means the backing service is unreachable or its circuit
	// is open.
	ErrUnavailable = errors.New("unavailable")
)
