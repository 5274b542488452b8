package model

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a window or matrix does not have the
// expected number of rows or features.
var ErrShapeMismatch = errors.New("shape mismatch")

// ErrInvalidJob is returned when a charge job has out of range parameters.
var ErrInvalidJob = errors.New("invalid charge job")

// ShapeError describes the offending input of a shape mismatch.
type ShapeError struct {
	What     string
	Rows     int
	Cols     int
	WantRows int
	WantCols int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: got (%d, %d), want (%d, %d)", e.What, e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// Unwrap lets errors.Is match ErrShapeMismatch.
func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }
