// Package reactive implements the explicit dependency graph that drives a
// dashboard session: signals set by input adapters, pure derived nodes, and
// side-effecting sinks. Every external event runs as one propagation pass that
// recomputes the affected derived nodes once, in topological order, and then
// runs the affected sinks once.
//
// A Graph is single-writer. The first goroutine that runs a pass owns it and
// every later call from another goroutine fails with ErrForeignGoroutine.
package reactive

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"go.uber.org/zap"
)

var (
	ErrCycle            = errors.New("reactive: dependency cycle")
	ErrDuplicate        = errors.New("reactive: node already declared")
	ErrSinkDependency   = errors.New("reactive: sinks cannot be depended on")
	ErrUnknownNode      = errors.New("reactive: unknown node")
	ErrNotSignal        = errors.New("reactive: node is not a signal")
	ErrUndeclared       = errors.New("reactive: dependency not declared")
	ErrForeignGoroutine = errors.New("reactive: graph used from a foreign goroutine")
)

// Kind distinguishes the three node roles.
type Kind int

const (
	KindSignal Kind = iota
	KindDerived
	KindSink
)

func (k Kind) String() string {
	switch k {
	case KindSignal:
		return "signal"
	case KindDerived:
		return "derived"
	case KindSink:
		return "sink"
	}
	return "unknown"
}

// DeriveFunc recomputes a derived node. It must not have side effects.
type DeriveFunc func(in Inputs) (any, error)

// SinkFunc performs the side effect of a sink (rendering, export, fetch).
type SinkFunc func(in Inputs)

// Update sets one signal. Several updates applied together form one pass.
type Update struct {
	Name  string
	Value any
}

// Pass describes a completed propagation pass.
type Pass struct {
	Seq        uint64
	Changed    []string
	Recomputed []string
	Sinks      []string
	Duration   time.Duration
}

type node struct {
	name  string
	kind  Kind
	deps  []string
	fn    DeriveFunc
	sink  SinkFunc
	value Value
	subs  []*node
	evals int
}

// Graph owns the nodes of one session.
type Graph struct {
	nodes   map[string]*node
	decl    []*node // declaration order
	order   []*node // topological order
	waiting map[string][]*node

	owner   atomic.Int64
	running bool
	pending [][]Update
	seq     uint64

	observer func(Pass)
	log      *zap.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for pass diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) { g.log = l }
}

// WithObserver registers a callback invoked after every pass.
func WithObserver(fn func(Pass)) Option {
	return func(g *Graph) { g.observer = fn }
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:   make(map[string]*node),
		waiting: make(map[string][]*node),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// DeclareSignal adds an externally set input with its initial value.
func (g *Graph) DeclareSignal(name string, initial any) error {
	return g.declare(&node{name: name, kind: KindSignal, value: Ok(initial)})
}

// DeclareDerived adds a pure computation over deps. Dependencies may name
// nodes that are declared later; a declaration that would close a cycle fails
// with ErrCycle and leaves the graph unchanged.
func (g *Graph) DeclareDerived(name string, deps []string, fn DeriveFunc) error {
	return g.declare(&node{name: name, kind: KindDerived, deps: dedupe(deps), fn: fn})
}

// DeclareSink adds a side-effecting terminal node over deps.
func (g *Graph) DeclareSink(name string, deps []string, fn SinkFunc) error {
	return g.declare(&node{name: name, kind: KindSink, deps: dedupe(deps), sink: fn})
}

func (g *Graph) declare(n *node) error {
	if err := g.checkOwner(); err != nil {
		return err
	}
	if _, ok := g.nodes[n.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, n.name)
	}
	if n.kind == KindSink && len(g.waiting[n.name]) > 0 {
		return fmt.Errorf("%w: %s is referenced by %s", ErrSinkDependency, n.name, g.waiting[n.name][0].name)
	}
	for _, d := range n.deps {
		if d == n.name {
			return fmt.Errorf("%w: %s depends on itself", ErrCycle, n.name)
		}
		if dep, ok := g.nodes[d]; ok && dep.kind == KindSink {
			return fmt.Errorf("%w: %s depends on sink %s", ErrSinkDependency, n.name, d)
		}
		if g.reaches(d, n.name, map[string]bool{}) {
			return fmt.Errorf("%w: %s -> %s -> ... -> %s", ErrCycle, n.name, d, n.name)
		}
	}

	g.nodes[n.name] = n
	g.decl = append(g.decl, n)
	for _, d := range n.deps {
		if dep, ok := g.nodes[d]; ok {
			dep.subs = append(dep.subs, n)
		} else {
			g.waiting[d] = append(g.waiting[d], n)
		}
	}
	if waiters, ok := g.waiting[n.name]; ok {
		n.subs = append(n.subs, waiters...)
		delete(g.waiting, n.name)
	}
	g.sort()

	// Settle the new node and anything that was waiting on it, without
	// running sinks. Sinks first run on Refresh or on a pass that reaches them.
	affected := g.downstream([]*node{n})
	for _, m := range g.order {
		if affected[m] && m.kind == KindDerived {
			g.recompute(m)
		}
	}
	return nil
}

// reaches reports whether target is reachable from name by following
// declared dependency edges.
func (g *Graph) reaches(name, target string, seen map[string]bool) bool {
	if name == target {
		return true
	}
	if seen[name] {
		return false
	}
	seen[name] = true
	n, ok := g.nodes[name]
	if !ok {
		return false
	}
	for _, d := range n.deps {
		if g.reaches(d, target, seen) {
			return true
		}
	}
	return false
}

// sort rebuilds the topological order with a depth-first post-order walk in
// declaration order, so ties resolve the same way on every run.
func (g *Graph) sort() {
	order := make([]*node, 0, len(g.decl))
	visited := make(map[*node]bool, len(g.decl))
	var visit func(n *node)
	visit = func(n *node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, d := range n.deps {
			if dep, ok := g.nodes[d]; ok {
				visit(dep)
			}
		}
		order = append(order, n)
	}
	for _, n := range g.decl {
		visit(n)
	}
	g.order = order
}

// downstream returns the transitive closure of roots over subscriber edges,
// roots included.
func (g *Graph) downstream(roots []*node) map[*node]bool {
	out := make(map[*node]bool)
	stack := append([]*node(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[n] {
			continue
		}
		out[n] = true
		stack = append(stack, n.subs...)
	}
	return out
}

// Set updates one signal and runs a pass.
func (g *Graph) Set(name string, v any) error {
	return g.Apply(Update{Name: name, Value: v})
}

// Apply sets every signal in updates and runs exactly one pass for all of
// them. Called from inside a sink, the updates are queued and run as the next
// pass once the current one finishes.
func (g *Graph) Apply(updates ...Update) error {
	if err := g.checkOwner(); err != nil {
		return err
	}
	for _, u := range updates {
		n, ok := g.nodes[u.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, u.Name)
		}
		if n.kind != KindSignal {
			return fmt.Errorf("%w: %s is a %s", ErrNotSignal, u.Name, n.kind)
		}
	}
	if len(updates) == 0 {
		return nil
	}
	if g.running {
		g.pending = append(g.pending, updates)
		return nil
	}

	g.run(updates, false)
	g.drain()
	return nil
}

// Refresh runs a pass that treats every node as affected: all derived nodes
// recompute and all sinks run. Used when a client (re)attaches and needs the
// full view.
func (g *Graph) Refresh() error {
	if err := g.checkOwner(); err != nil {
		return err
	}
	if g.running {
		g.pending = append(g.pending, nil)
		return nil
	}
	g.run(nil, true)
	g.drain()
	return nil
}

// drain runs queued passes in order. A nil entry is a queued Refresh.
func (g *Graph) drain() {
	for len(g.pending) > 0 {
		next := g.pending[0]
		g.pending = g.pending[1:]
		g.run(next, next == nil)
	}
}

func (g *Graph) run(updates []Update, all bool) {
	g.running = true
	defer func() { g.running = false }()

	start := time.Now()
	g.seq++
	p := Pass{Seq: g.seq}

	roots := make([]*node, 0, len(updates))
	for _, u := range updates {
		n := g.nodes[u.Name]
		n.value = Ok(u.Value)
		roots = append(roots, n)
		p.Changed = append(p.Changed, u.Name)
	}

	var affected map[*node]bool
	if !all {
		affected = g.downstream(roots)
	}
	hit := func(n *node) bool { return all || affected[n] }

	for _, n := range g.order {
		if n.kind == KindDerived && hit(n) {
			g.recompute(n)
			p.Recomputed = append(p.Recomputed, n.name)
		}
	}
	for _, n := range g.order {
		if n.kind == KindSink && hit(n) {
			n.evals++
			n.sink(g.inputs(n))
			p.Sinks = append(p.Sinks, n.name)
		}
	}

	p.Duration = time.Since(start)
	g.log.Debug("propagation pass",
		zap.Uint64("seq", p.Seq),
		zap.Strings("changed", p.Changed),
		zap.Int("recomputed", len(p.Recomputed)),
		zap.Int("sinks", len(p.Sinks)),
		zap.Duration("duration", p.Duration))
	if g.observer != nil {
		g.observer(p)
	}
}

func (g *Graph) recompute(n *node) {
	n.evals++
	in := g.inputs(n)
	n.value = func() (out Value) {
		defer func() {
			if r := recover(); r != nil {
				out = Stale(fmt.Errorf("reactive: node %s panicked: %v", n.name, r))
			}
		}()
		v, err := n.fn(in)
		if err != nil {
			return Stale(err)
		}
		return Ok(v)
	}()
	if n.value.IsStale() {
		g.log.Debug("derived node stale", zap.String("node", n.name), zap.Error(n.value.Err()))
	}
}

func (g *Graph) inputs(n *node) Inputs {
	values := make(map[string]Value, len(n.deps))
	for _, d := range n.deps {
		if dep, ok := g.nodes[d]; ok {
			values[d] = dep.value
		} else {
			values[d] = Stale(fmt.Errorf("%w: %s", ErrUndeclared, d))
		}
	}
	return Inputs{values: values}
}

// Peek returns the current memoized value of a node.
func (g *Graph) Peek(name string) Value {
	if err := g.checkOwner(); err != nil {
		return Stale(err)
	}
	n, ok := g.nodes[name]
	if !ok {
		return Stale(fmt.Errorf("%w: %s", ErrUnknownNode, name))
	}
	return n.value
}

// Evaluations returns how many times a derived node has been recomputed or a
// sink has run.
func (g *Graph) Evaluations(name string) int {
	if n, ok := g.nodes[name]; ok {
		return n.evals
	}
	return 0
}

// Passes returns the number of completed passes.
func (g *Graph) Passes() uint64 { return g.seq }

// Order returns node names in topological order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	for i, n := range g.order {
		out[i] = n.name
	}
	return out
}

// checkOwner claims the graph for the calling goroutine on first use and
// rejects every other goroutine afterwards.
func (g *Graph) checkOwner() error {
	id := goid.Get()
	if g.owner.CompareAndSwap(0, id) {
		return nil
	}
	if g.owner.Load() != id {
		return ErrForeignGoroutine
	}
	return nil
}

// Release gives up ownership so another goroutine can claim the graph.
// Sessions build the graph on the request goroutine and release it before
// the event loop takes over.
func (g *Graph) Release() { g.owner.Store(0) }

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
