package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/existential-birds/amelia-sub017/domain"
)

func TestGraph_ValidateRejectsMissingEntry(t *testing.T) {
	g := NewGraph("start")
	require.ErrorIs(t, g.Validate(), ErrNoEntryNode)
}

func TestGraph_ValidateRejectsUnknownEdgeTarget(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	g.Connect("start", "missing", nil)
	require.ErrorIs(t, g.Validate(), ErrUnknownNode)
}

func TestGraph_ValidatePasses(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	g.AddNode(NodeFunc{NodeID: "end", NodeKind: KindNoop})
	g.Connect("start", "end", nil)
	require.NoError(t, g.Validate())
}

func TestGraph_AddNodeDuplicatePanics(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	require.Panics(t, func() {
		g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	})
}

func TestGraph_ResolveNextPrefersExplicitRoute(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	g.AddNode(NodeFunc{NodeID: "a", NodeKind: KindNoop})
	g.AddNode(NodeFunc{NodeID: "b", NodeKind: KindNoop})
	g.Connect("start", "a", nil)

	to, terminal, err := g.resolveNext("start", GotoNode("b"), domain.ExecutionState{})
	require.NoError(t, err)
	require.False(t, terminal)
	require.Equal(t, "b", to)
}

func TestGraph_ResolveNextFallsBackToFirstMatchingEdge(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	g.AddNode(NodeFunc{NodeID: "a", NodeKind: KindNoop})
	g.AddNode(NodeFunc{NodeID: "b", NodeKind: KindNoop})
	g.Connect("start", "a", func(s domain.ExecutionState) bool { return s.BatchIndex > 0 })
	g.Connect("start", "b", nil)

	to, terminal, err := g.resolveNext("start", Next{}, domain.ExecutionState{})
	require.NoError(t, err)
	require.False(t, terminal)
	require.Equal(t, "b", to)
}

func TestGraph_ResolveNextNoMatchingEdgeErrors(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	_, _, err := g.resolveNext("start", Next{}, domain.ExecutionState{})
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestGraph_ResolveNextTerminal(t *testing.T) {
	g := NewGraph("start")
	g.AddNode(NodeFunc{NodeID: "start", NodeKind: KindNoop})
	_, terminal, err := g.resolveNext("start", Stop(), domain.ExecutionState{})
	require.NoError(t, err)
	require.True(t, terminal)
}
