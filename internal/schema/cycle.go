package schema

import (
	"fmt"
	"sort"
	"strings"
)

// analyzeCascadeCycles detects cycles in the cascade subgraph of the
// foreign-key graph.
//
// An edge runs from a referenced table to a referencing table whenever
// the foreign key's delete or update action is CASCADE: deleting (or
// re-keying) a row of the referenced table propagates to the referencing
// one. A cycle in that subgraph means a cascade could chase its own tail
// without terminating, so such schemas are rejected outright. A
// self-referencing foreign key is fine under RESTRICT or SET_NULL.
//
// The algorithm:
//  1. Build referenced-table → referencing-table edges for CASCADE actions
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, and each self-loop, as an error
func analyzeCascadeCycles(tables []Table) []error {
	graph := make(cascadeGraph)
	for i := range tables {
		// Every table is a node even without edges, so Tarjan visits it.
		if graph[tables[i].Name] == nil {
			graph[tables[i].Name] = []string{}
		}
	}
	for i := range tables {
		t := &tables[i]
		for j := range t.ForeignKeys {
			fk := &t.ForeignKeys[j]
			if fk.DeleteAction() == Cascade || fk.UpdateAction() == Cascade {
				graph[fk.RefTable] = append(graph[fk.RefTable], t.Name)
			}
		}
	}

	var errs []error
	for _, scc := range tarjanSCC(graph) {
		switch {
		case len(scc) == 1 && hasSelfLoop(scc[0], graph):
			errs = append(errs, fmt.Errorf(
				"cascade cycle: table %s cascades onto itself; use restrict or set_null for self-referencing keys",
				scc[0]))
		case len(scc) > 1:
			sort.Strings(scc)
			errs = append(errs, fmt.Errorf(
				"cascade cycle between tables %s: a delete could cascade forever",
				strings.Join(scc, " -> ")))
		}
	}
	return errs
}

// cascadeGraph maps table name → tables its cascades reach.
type cascadeGraph map[string][]string

func hasSelfLoop(node string, graph cascadeGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are not cycles.
func tarjanSCC(graph cascadeGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Visit in sorted order so error output is deterministic.
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}
