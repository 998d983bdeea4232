// Package graph implements the SQL agent workflow as an explicit state machine:
// a table of node handlers, a static edge table and a conditional edge table
// evaluated by pure routers.
package graph

import (
	"context"
	"fmt"

	"github.com/janhq/sql-agent/internal/domain/message"
)

// NodeID names a node of the workflow.
type NodeID string

const (
	Start NodeID = "__start__"
	End   NodeID = "__end__"

	NodeListTablesRequest NodeID = "list_tables_request"
	NodeListTablesExec    NodeID = "list_tables_exec"
	NodeSchemaRequest     NodeID = "schema_request"
	NodeSchemaExec        NodeID = "schema_exec"
	NodeGenerateQuery     NodeID = "generate_query"
	NodeCheckQuery        NodeID = "check_query"
	NodeRunQuery          NodeID = "run_query"
)

// String returns the node name.
func (n NodeID) String() string {
	return string(n)
}

// History is the read-only view of the log handed to nodes.
type History interface {
	Last() (message.Message, bool)
	Messages() []message.Message
	Effective() []message.Message
}

// Node computes the messages to append given the current history.
type Node func(ctx context.Context, history History) ([]message.Message, error)

// Router selects the next node from the most recent message.
type Router func(last message.Message) NodeID

// Graph is a compiled workflow topology.
type Graph struct {
	entry    NodeID
	nodes    map[NodeID]Node
	edges    map[NodeID]NodeID
	branches map[NodeID]Router
}

func newGraph() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]Node),
		edges:    make(map[NodeID]NodeID),
		branches: make(map[NodeID]Router),
	}
}

func (g *Graph) addNode(id NodeID, node Node) *Graph {
	g.nodes[id] = node
	return g
}

func (g *Graph) addEdge(from, to NodeID) *Graph {
	if from == Start {
		g.entry = to
		return g
	}
	g.edges[from] = to
	return g
}

func (g *Graph) addConditionalEdge(from NodeID, router Router) *Graph {
	g.branches[from] = router
	return g
}

// validate checks that every node has exactly one way out and that every
// static target exists.
func (g *Graph) validate() error {
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry node %q is not registered", g.entry)
	}
	for id := range g.nodes {
		_, static := g.edges[id]
		_, conditional := g.branches[id]
		switch {
		case static && conditional:
			return fmt.Errorf("node %q has both a static and a conditional edge", id)
		case !static && !conditional:
			return fmt.Errorf("node %q has no outgoing edge", id)
		}
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[to]; !ok && to != End {
			return fmt.Errorf("edge %q -> %q targets an unknown node", from, to)
		}
	}
	return nil
}

// Next resolves the node that follows from.
func (g *Graph) Next(from NodeID, history History) NodeID {
	if router, ok := g.branches[from]; ok {
		last, _ := history.Last()
		return router(last)
	}
	if to, ok := g.edges[from]; ok {
		return to
	}
	return End
}

// Entry returns the first node of the workflow.
func (g *Graph) Entry() NodeID {
	return g.entry
}

// Node returns the handler registered for id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}
