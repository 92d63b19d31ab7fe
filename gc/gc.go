// Package gc implements the engine's mark-sweep collector over the object
// graph rooted at the engine's live state (spec.md §4.5).
package gc

import (
	"github.com/eddid/v7go/object"
	"github.com/eddid/v7go/value"
)

// Roots enumerates every place a live value can be reached from, mirroring
// spec.md §4.5's root set: the global object, named prototypes, the VM's
// value stack, each call frame's scope/this/stashed-return, and the
// engine's own "owned" buffer (values explicitly rooted via own/disown).
type Roots struct {
	Global     *object.Object
	Prototypes []*object.Object
	Stack      []value.Value
	Frames     []Frame
	Owned      []*object.Object
}

// Frame is the subset of a VM call frame the collector needs to walk: its
// scope chain, `this` binding, and any pending try-stack handler values.
// vm.Frame satisfies this via its GCRoots method, avoiding a gc->vm import
// cycle.
type Frame interface {
	GCRoots() []value.Value
}

// Collector runs mark-sweep over the tracked object set: it walks Roots,
// marks every object transitively reachable from them, then sweeps
// anything left unmarked, running destructors first.
//
// Unlike the source engine's fixed-cell arena with string-buffer
// relocation, objects here are ordinary Go heap values the Go runtime's own
// collector already manages; this Collector's job is to run destructors at
// the right time and to give the engine an observable, deterministic
// collection point for spec.md's "run to collect garbage synchronously"
// contract (`Engine.GC`), not to reclaim memory itself.
type Collector struct {
	arena   []*object.Object
	marked  map[*object.Object]bool
	inhibit int
	swept   int
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{marked: make(map[*object.Object]bool)}
}

// Register adds o to the set of objects the collector tracks. The engine
// calls this whenever it allocates a new Object (generic, function, or
// dense array).
func (c *Collector) Register(o *object.Object) {
	c.arena = append(c.arena, o)
}

// Inhibit increments the inhibit-GC counter, preventing Collect from
// running. Per spec.md, cfunction calls must inhibit collection for the
// duration of the call since native code may hold bare pointers the
// collector cannot see as roots.
func (c *Collector) Inhibit() { c.inhibit++ }

// Uninhibit decrements the inhibit-GC counter. It is a no-op (not a panic)
// if already zero, since a cfunction that throws partway through a nested
// Inhibit/Uninhibit pair must still be able to unwind safely.
func (c *Collector) Uninhibit() {
	if c.inhibit > 0 {
		c.inhibit--
	}
}

// Collect performs one mark-sweep pass. It is a no-op while inhibited.
// Returns the number of objects freed.
func (c *Collector) Collect(roots Roots) int {
	if c.inhibit > 0 {
		return 0
	}
	for k := range c.marked {
		delete(c.marked, k)
	}
	c.mark(roots.Global)
	for _, p := range roots.Prototypes {
		c.mark(p)
	}
	for _, o := range roots.Owned {
		c.mark(o)
	}
	for _, v := range roots.Stack {
		c.markValue(v)
	}
	for _, f := range roots.Frames {
		for _, v := range f.GCRoots() {
			c.markValue(v)
		}
	}
	return c.sweep()
}

// scopeHolder is satisfied by vm.Function without gc needing to import vm
// (which would cycle back through vm's own gc.Frame dependency): a closure
// is not itself an *object.Object, but the lexical scope it captured is,
// and that scope is what keeps the closure's free variables alive.
type scopeHolder interface {
	GCScope() *object.Object
}

// markValue marks the object (if any) a value points at, dispatching on
// tag the same way value.Value's accessors do.
func (c *Collector) markValue(v value.Value) {
	switch v.Tag() {
	case value.TagObject:
		if o, ok := v.Ptr().(*object.Object); ok {
			c.mark(o)
		}
	case value.TagFunction:
		if sh, ok := v.Ptr().(scopeHolder); ok {
			c.mark(sh.GCScope())
		}
	}
}

func (c *Collector) mark(o *object.Object) {
	if o == nil || c.marked[o] {
		return
	}
	c.marked[o] = true
	c.mark(o.Proto)
	c.markProperties(o)
	c.markElements(o)
}

func (c *Collector) markProperties(o *object.Object) {
	o.ForEachProperty(func(p *object.Property) {
		c.markValue(p.Value)
		if p.IsAccessor() {
			c.markValue(p.Getter())
			c.markValue(p.Setter())
		}
	})
}

func (c *Collector) markElements(o *object.Object) {
	if !o.IsDenseArray() {
		return
	}
	n := o.Length()
	for i := 0; i < n; i++ {
		c.markValue(o.RawElementAt(i))
	}
}

// sweep frees every unmarked arena entry, running its destructor first if
// it carries one, per spec.md's "destructor runs before the cell is freed
// during sweep" rule. The arena is compacted in place.
func (c *Collector) sweep() int {
	kept := c.arena[:0]
	freed := 0
	for _, o := range c.arena {
		if c.marked[o] {
			kept = append(kept, o)
			continue
		}
		o.RunDestructor()
		freed++
	}
	c.arena = kept
	c.swept += freed
	return freed
}

// Stats reports cumulative sweep counters, mirroring the diagnostic counters
// spec.md's v7_heap_stat exposes to embedders.
type Stats struct {
	LiveObjects int
	TotalSwept  int
}

func (c *Collector) Stats() Stats {
	return Stats{LiveObjects: len(c.arena), TotalSwept: c.swept}
}
