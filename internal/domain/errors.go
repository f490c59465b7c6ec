package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a coarse-grained categorization for pipeline errors.
// Every kind is fatal to a run.
type ErrorKind string

const (
	KindDataQuality    ErrorKind = "data_quality"
	KindGraphIntegrity ErrorKind = "graph_integrity"
	KindAlignment      ErrorKind = "alignment"
	KindSolver         ErrorKind = "solver"
	KindConfig         ErrorKind = "config"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Path string // Optional: input file the error refers to
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Errorf builds an OpError whose cause is a formatted message.
func Errorf(op string, kind ErrorKind, format string, args ...any) error {
	return &OpError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches op and kind to err. A nil err stays nil.
func Wrap(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

// IsKind reports whether any OpError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	for err != nil {
		if !errors.As(err, &oe) {
			return false
		}
		if oe.Kind == kind {
			return true
		}
		err = oe.Err
	}
	return false
}

// AsymmetryError reports an adjacency matrix that is not symmetric.
// Cells counts ordered (i, j) pairs, so one asymmetric unordered pair
// contributes 2.
type AsymmetryError struct {
	Cells int
}

func (e *AsymmetryError) Error() string {
	return fmt.Sprintf("adjacency matrix is not symmetric: %d asymmetric cells", e.Cells)
}
