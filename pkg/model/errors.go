package model

import "errors"

// Precondition errors. Callers match them with errors.Is.
var (
	ErrNilRecords         = errors.New("record collection is nil")
	ErrNilGraph           = errors.New("graph is nil")
	ErrNegativeIterations = errors.New("iteration count must not be negative")
	ErrInvalidAttribute   = errors.New("invalid attribute key")
	ErrUnknownEdgeType    = errors.New("unknown edge type")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrResultSize         = errors.New("result does not match graph size")
)
