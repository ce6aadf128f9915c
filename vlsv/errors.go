// Package vlsv reads VLSV snapshots written by the Vlasiator plasma
// simulation: the variable and parameter catalog, the adaptively refined
// spatial grid and its cell-id arithmetic, and the sparse velocity
// distributions stored per particle population.
package vlsv

import (
	"errors"

	"github.com/robert-malhotra/go-vlsv/internal/cellindex"
	"github.com/robert-malhotra/go-vlsv/internal/footer"
	"github.com/robert-malhotra/go-vlsv/internal/mesh"
	"github.com/robert-malhotra/go-vlsv/internal/vspace"
)

// Common errors. Errors returned by this package wrap one of these with the
// offending name, id or offset.
var (
	ErrFormat            = footer.ErrFormat
	ErrMissingParameter  = mesh.ErrMissingParameter
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrUnknownCellID     = cellindex.ErrUnknownCellID
	ErrInvalidCellID     = mesh.ErrInvalidCellID
	ErrOutOfDomain       = mesh.ErrOutOfDomain
	ErrNoCell            = mesh.ErrNoCell
	ErrNoDistribution    = errors.New("cell has no velocity distribution")
	ErrUnknownPopulation = errors.New("unknown population")
	ErrNotFound          = vspace.ErrNotFound
	ErrIO                = errors.New("i/o error")
	ErrClosed            = errors.New("file is closed")
)
