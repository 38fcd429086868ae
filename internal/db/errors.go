package db

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
var (
	ErrKeyNotFound     = errors.New("db: key not found")
	ErrIndexNotFound   = errors.New("db: index not found")
	ErrBadQuery        = errors.New("db: query rejected by backend")
	ErrBackendStatus   = errors.New("db: unexpected backend status")
	ErrAggregationType = errors.New("db: unexpected aggregation shape")
)

// Op constants name backend operations for error context.
const (
	OpSearch      = "SEARCH"
	OpScroll      = "SCROLL"
	OpClearScroll = "CLEAR_SCROLL"
	OpCount       = "COUNT"
	OpPing        = "PING"
	OpGet         = "GET"
	OpSet         = "SET"
	OpScan        = "SCAN"
	OpDel         = "DEL"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Status int
	Type   string
	Reason string
}

func (e *StatusError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// Unwrap classifies the status into a sentinel.
func (e *StatusError) Unwrap() error {
	switch e.Type {
	case "index_not_found_exception":
		return ErrIndexNotFound
	case "parsing_exception", "query_shard_exception", "search_phase_execution_exception", "illegal_argument_exception":
		return ErrBadQuery
	}
	if e.Status == 404 {
		return ErrIndexNotFound
	}
	return ErrBackendStatus
}
