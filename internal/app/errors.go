// Package app contains the application services: the flow engine, the
// inbound pipeline, and the router that correlates incoming mail with
// suspended flows. Services orchestrate the pure core packages and the
// secondary ports; they own all I/O sequencing.
package app

import "errors"

// Typed failures surfaced by the services. Transport handlers log them
// and acknowledge anyway; the CLI prints them.
var (
	// ErrAgentUnknown means no configured agent matches the addressed
	// username.
	ErrAgentUnknown = errors.New("unknown agent")

	// ErrToolExecution means the tool gateway could not be reached or
	// returned garbage. Distinct from a tool that ran and reported
	// failure, which feeds back into the conversation instead.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrNotResumable means an incoming event matched no waiting flow
	// condition.
	ErrNotResumable = errors.New("event does not resume the flow")
)
