// Package cascade deletes a record together with everything it owns.
//
// Ownership is declared once as a graph of kinds. Deleting a record walks the
// graph depth first and removes children before their parent, so a partial
// failure never leaves a child whose owner is already gone.
package cascade

import (
	"context"
	"fmt"
	"sort"

	"github.com/clawmart/clawmart/pkg/cerr"
)

type Kind string

// DeleteFunc removes a single record of a kind.
type DeleteFunc func(ctx context.Context, id string) error

// ChildrenFunc lists the ids of the child records owned by parentID.
type ChildrenFunc func(ctx context.Context, parentID string) ([]string, error)

type edge struct {
	child    Kind
	children ChildrenFunc
}

type Graph struct {
	deleters map[Kind]DeleteFunc
	edges    map[Kind][]edge
}

func New() *Graph {
	return &Graph{
		deleters: make(map[Kind]DeleteFunc),
		edges:    make(map[Kind][]edge),
	}
}

// Register declares a kind and how to delete one of its records.
func (g *Graph) Register(kind Kind, del DeleteFunc) {
	g.deleters[kind] = del
}

// Own declares that records of parent own records of child.
// Edges are walked in declaration order.
func (g *Graph) Own(parent, child Kind, children ChildrenFunc) error {
	if _, ok := g.deleters[parent]; !ok {
		return fmt.Errorf("cascade: kind %q is not registered", parent)
	}
	if _, ok := g.deleters[child]; !ok {
		return fmt.Errorf("cascade: kind %q is not registered", child)
	}
	if parent == child || g.reaches(child, parent) {
		return fmt.Errorf("cascade: %q -> %q would form a cycle", parent, child)
	}
	g.edges[parent] = append(g.edges[parent], edge{child: child, children: children})
	return nil
}

func (g *Graph) reaches(from, to Kind) bool {
	for _, e := range g.edges[from] {
		if e.child == to || g.reaches(e.child, to) {
			return true
		}
	}
	return false
}

// Report counts deleted records per kind.
type Report map[Kind]int

func (r Report) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

func (r Report) String() string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	s := ""
	for i, k := range kinds {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%d", k, r[Kind(k)])
	}
	return s
}

// Delete removes the record id of kind and, first, everything it owns.
// A child already removed through another owner is skipped. The root itself must exist.
func (g *Graph) Delete(ctx context.Context, kind Kind, id string) (Report, error) {
	if _, ok := g.deleters[kind]; !ok {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("cascade: kind %q is not registered", kind))
	}
	report := Report{}
	if err := g.delete(ctx, kind, id, report, true); err != nil {
		return report, err
	}
	return report, nil
}

func (g *Graph) delete(ctx context.Context, kind Kind, id string, report Report, root bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range g.edges[kind] {
		ids, err := e.children(ctx, id)
		if err != nil {
			return err
		}
		for _, childID := range ids {
			if err := g.delete(ctx, e.child, childID, report, false); err != nil {
				return err
			}
		}
	}
	if err := g.deleters[kind](ctx, id); err != nil {
		if !root && cerr.IsCode(err, cerr.NotFound) {
			return nil
		}
		return err
	}
	report[kind]++
	return nil
}
