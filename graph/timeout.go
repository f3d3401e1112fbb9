package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/existential-birds/amelia-sub017/domain"
)

// nodeTimeout resolves the timeout to apply to a node execution: an explicit
// per-node override if set, else the runtime-wide default, else no limit.
func nodeTimeout(override, runtimeDefault time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return runtimeDefault
}

// executeWithTimeout runs node against state under the resolved timeout,
// reporting a graph-level timeout error distinct from the node's own Err;
// the runtime fails the run with that error.
func executeWithTimeout(ctx context.Context, n Node, state domain.ExecutionState, timeout time.Duration) (NodeResult, error) {
	if timeout <= 0 {
		return n.Execute(ctx, state), nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := n.Execute(timeoutCtx, state)
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("graph: node %s exceeded timeout of %v", n.ID(), timeout)
	}
	return result, nil
}
