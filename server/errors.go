package server

import "errors"

var (
	// ErrEngineRequired is returned when New is called without an engine.
	ErrEngineRequired = errors.New("server: engine is required")
)
