package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable means a remote or local source was missing or malformed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParse marks a row that could not be parsed during cleaning.
	ErrParse = errors.New("parse error")
	// ErrUnknownColumn is returned when a query names a column the table lacks.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrInvalidWindow is returned for a non-positive lookback window.
	ErrInvalidWindow = errors.New("invalid lookback window")
	// ErrNoUsableTable means every provider failed; this is fatal to a build.
	ErrNoUsableTable = errors.New("no usable table")
)

// UnknownColumnError lists the offending column names.
type UnknownColumnError struct {
	Columns []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column(s): %s", strings.Join(e.Columns, ", "))
}

func (e *UnknownColumnError) Unwrap() error { return ErrUnknownColumn }
