package graph

import "errors"

// ErrMaxStepsExceeded indicates that execution reached the configured step
// ceiling without reaching a terminal node, most likely a routing cycle
// missing an exit predicate.
var ErrMaxStepsExceeded = errors.New("graph: execution exceeded maximum steps")

// ErrUnknownNode is returned when a route (explicit or edge-resolved) names
// a node ID the Graph was never built with.
var ErrUnknownNode = errors.New("graph: unknown node")

// ErrNoRoute is returned when a non-terminal node's result carries no
// explicit Route and none of its outgoing edges match the merged state.
var ErrNoRoute = errors.New("graph: no matching outgoing edge")

// ErrNoEntryNode is returned by Graph.Validate when EntryNode is empty or
// unknown.
var ErrNoEntryNode = errors.New("graph: entry node not set or not registered")
