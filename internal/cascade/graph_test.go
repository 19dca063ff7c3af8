package cascade

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawmart/clawmart/pkg/cerr"
)

// table is a tiny in-memory store keyed by kind with parent pointers.
type table struct {
	mu      sync.Mutex
	rows    map[Kind]map[string]string // kind -> id -> parent id
	deleted []string
}

func newTable() *table {
	return &table{rows: map[Kind]map[string]string{}}
}

func (t *table) add(kind Kind, id, parent string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows[kind] == nil {
		t.rows[kind] = map[string]string{}
	}
	t.rows[kind][id] = parent
}

func (t *table) deleter(kind Kind) DeleteFunc {
	return func(_ context.Context, id string) error {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.rows[kind][id]; !ok {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("%s not found", kind), nil)
		}
		delete(t.rows[kind], id)
		t.deleted = append(t.deleted, string(kind)+":"+id)
		return nil
	}
}

func (t *table) children(kind Kind, parentOf func(id string) string) ChildrenFunc {
	return func(_ context.Context, parentID string) ([]string, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		var ids []string
		for id := range t.rows[kind] {
			if parentOf(id) == parentID {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return ids, nil
	}
}

func (t *table) count(kind Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows[kind])
}

func (t *table) index(entry string) int {
	for i, d := range t.deleted {
		if d == entry {
			return i
		}
	}
	return -1
}

const (
	kindWorkforce Kind = "workforce"
	kindAgent     Kind = "agent"
	kindMessage   Kind = "message"
)

// messages carry "agent|workforce" as their parent so both owners can find them.
func newWorkforceGraph(t *testing.T, tb *table) *Graph {
	t.Helper()
	g := New()
	g.Register(kindWorkforce, tb.deleter(kindWorkforce))
	g.Register(kindAgent, tb.deleter(kindAgent))
	g.Register(kindMessage, tb.deleter(kindMessage))

	agentParent := func(id string) string {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		return tb.rows[kindAgent][id]
	}
	messageParent := func(part int) func(string) string {
		return func(id string) string {
			tb.mu.Lock()
			defer tb.mu.Unlock()
			p := tb.rows[kindMessage][id]
			for i := 0; i < len(p); i++ {
				if p[i] == '|' {
					if part == 0 {
						return p[:i]
					}
					return p[i+1:]
				}
			}
			return ""
		}
	}
	// children() already holds the lock, so read parents from a snapshot.
	require.NoError(t, g.Own(kindWorkforce, kindAgent, snapshotChildren(tb, kindAgent, agentParent)))
	require.NoError(t, g.Own(kindAgent, kindMessage, snapshotChildren(tb, kindMessage, messageParent(0))))
	require.NoError(t, g.Own(kindWorkforce, kindMessage, snapshotChildren(tb, kindMessage, messageParent(1))))
	return g
}

func snapshotChildren(tb *table, kind Kind, parentOf func(string) string) ChildrenFunc {
	return func(_ context.Context, parentID string) ([]string, error) {
		tb.mu.Lock()
		ids := make([]string, 0, len(tb.rows[kind]))
		for id := range tb.rows[kind] {
			ids = append(ids, id)
		}
		tb.mu.Unlock()
		sort.Strings(ids)
		var out []string
		for _, id := range ids {
			if parentOf(id) == parentID {
				out = append(out, id)
			}
		}
		return out, nil
	}
}

func TestDeleteRemovesEverythingOwned(t *testing.T) {
	tb := newTable()
	tb.add(kindWorkforce, "w1", "")
	tb.add(kindWorkforce, "w2", "")
	tb.add(kindAgent, "a1", "w1")
	tb.add(kindAgent, "a2", "w1")
	tb.add(kindAgent, "b1", "w2")
	tb.add(kindMessage, "m1", "a1|w1")
	tb.add(kindMessage, "m2", "a1|w1")
	tb.add(kindMessage, "m3", "a2|w1")
	tb.add(kindMessage, "m4", "gone|w1") // agent already removed
	tb.add(kindMessage, "n1", "b1|w2")

	g := newWorkforceGraph(t, tb)
	report, err := g.Delete(context.Background(), kindWorkforce, "w1")
	require.NoError(t, err)

	assert.Equal(t, Report{kindWorkforce: 1, kindAgent: 2, kindMessage: 4}, report)
	assert.Equal(t, 7, report.Total())
	assert.Equal(t, "agent=2 message=4 workforce=1", report.String())

	assert.Equal(t, 1, tb.count(kindWorkforce))
	assert.Equal(t, 1, tb.count(kindAgent))
	assert.Equal(t, 1, tb.count(kindMessage))

	// children go before their owner
	assert.Less(t, tb.index("message:m1"), tb.index("agent:a1"))
	assert.Less(t, tb.index("message:m3"), tb.index("agent:a2"))
	assert.Less(t, tb.index("agent:a2"), tb.index("workforce:w1"))
	assert.Equal(t, len(tb.deleted)-1, tb.index("workforce:w1"))
}

func TestDeleteMissingRoot(t *testing.T) {
	tb := newTable()
	g := newWorkforceGraph(t, tb)

	_, err := g.Delete(context.Background(), kindWorkforce, "nope")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestDeleteUnregisteredKind(t *testing.T) {
	_, err := New().Delete(context.Background(), "ghost", "x")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
}

func TestDeleteStopsOnChildFailure(t *testing.T) {
	tb := newTable()
	tb.add(kindWorkforce, "w1", "")
	tb.add(kindAgent, "a1", "w1")

	g := New()
	g.Register(kindWorkforce, tb.deleter(kindWorkforce))
	g.Register(kindAgent, func(context.Context, string) error {
		return cerr.NewError(cerr.Unavailable, "storage down", nil)
	})
	require.NoError(t, g.Own(kindWorkforce, kindAgent, tb.children(kindAgent, func(string) string { return "w1" })))

	_, err := g.Delete(context.Background(), kindWorkforce, "w1")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
	assert.Equal(t, 1, tb.count(kindWorkforce), "owner must survive a failed child delete")
}

func TestOwnRejectsBadEdges(t *testing.T) {
	g := New()
	noop := func(context.Context, string) error { return nil }
	none := func(context.Context, string) ([]string, error) { return nil, nil }
	g.Register("a", noop)
	g.Register("b", noop)
	g.Register("c", noop)

	assert.Error(t, g.Own("a", "missing", none))
	assert.Error(t, g.Own("a", "a", none))
	require.NoError(t, g.Own("a", "b", none))
	require.NoError(t, g.Own("b", "c", none))
	assert.Error(t, g.Own("c", "a", none))
}
