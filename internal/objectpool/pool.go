// Package objectpool implements the typed, identity-preserving container
// that exclusively owns every model entity. It guarantees ID and name
// uniqueness, provides typed/regex lookup, and emits structural events on
// every mutation. Every other core component mutates the model only
// through this pool (or, more commonly, through the model facade built on
// top of it).
package objectpool

import (
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/metrics"
)

// Entity is implemented by every object the pool can store. Implementations
// live in domain/topology and domain/orders.
type Entity interface {
	ObjectID() int
	ObjectName() string
	// Kind returns the entity's type tag, e.g. "Point", "Path", "Vehicle".
	Kind() string
	// Clone returns a deep value copy, so pool internals and event
	// snapshots never alias caller-visible state.
	Clone() Entity
}

// Pool is the typed object store. The zero value is not usable; call New.
type Pool struct {
	mu sync.RWMutex

	byID   map[int]Entity
	byName map[string]Entity
	order  []int // insertion order of IDs, for stable enumeration

	ids   *identity.Service
	names *identity.Service

	bus     *eventbus.Bus
	metrics *metrics.Metrics

	// reentrancy guards against listeners calling back into the pool
	// while an event they are receiving is still being delivered, per
	// spec.md §5. It is set for the duration of Publish and checked
	// before any mutating method takes the lock, so a reentrant call
	// panics immediately instead of deadlocking on mu.
	reentrancy atomic.Bool
}

// New returns an empty Pool bound to the given identity service and event
// bus. ids is used only to release the removed entity's ID and name; callers are
// expected to have already minted the entity's ID/name via ids before
// calling Add.
func New(ids *identity.Service, bus *eventbus.Bus) *Pool {
	return &Pool{
		byID:   make(map[int]Entity),
		byName: make(map[string]Entity),
		ids:    ids,
		bus:    bus,
	}
}

// SetMetrics wires m so every mutation increments
// kernel_object_pool_mutations_total. Optional; a pool with no metrics set
// behaves exactly as before.
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

func (p *Pool) checkReentrant() {
	if p.reentrancy.Load() {
		panic("objectpool: reentrant mutation from an event listener callback")
	}
}

func (p *Pool) publish(ev eventbus.Event) {
	p.reentrancy.Store(true)
	defer p.reentrancy.Store(false)
	p.bus.Publish(ev)
}

func (p *Pool) recordMutation(op, kind string) {
	if p.metrics != nil {
		p.metrics.RecordObjectPoolMutation(op, kind)
	}
}

// Add inserts e. Fails with ObjectExists if e's ID or name collides with an
// existing entity.
func (p *Pool) Add(e Entity) error {
	p.checkReentrant()
	p.mu.Lock()
	if _, ok := p.byID[e.ObjectID()]; ok {
		p.mu.Unlock()
		return kernelerr.ObjectExists(e.ObjectName())
	}
	if _, ok := p.byName[e.ObjectName()]; ok {
		p.mu.Unlock()
		return kernelerr.ObjectExists(e.ObjectName())
	}
	p.byID[e.ObjectID()] = e
	p.byName[e.ObjectName()] = e
	p.order = append(p.order, e.ObjectID())
	p.mu.Unlock()

	p.recordMutation("add", e.Kind())
	p.publish(eventbus.Event{Kind: eventbus.KindObjectCreated, Type: e.Kind(), Current: e.Clone()})
	return nil
}

// GetByID returns the live entity for id, or (nil, false).
func (p *Pool) GetByID(id int) (Entity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byID[id]
	return e, ok
}

// GetByName returns the live entity for name, or (nil, false).
func (p *Pool) GetByName(name string) (Entity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byName[name]
	return e, ok
}

// resolve looks up an entity by name only; a numeric ID string is not
// resolved (use GetByID for that). The caller holds mu.
func (p *Pool) resolve(ref string) (Entity, bool) {
	if e, ok := p.byName[ref]; ok {
		return e, true
	}
	return nil, false
}

// All returns every entity in stable insertion order.
func (p *Pool) All() []Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entity, 0, len(p.order))
	for _, id := range p.order {
		if e, ok := p.byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ByKind returns every entity whose Kind() equals kind, in insertion order.
func (p *Pool) ByKind(kind string) []Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Entity
	for _, id := range p.order {
		e := p.byID[id]
		if e != nil && e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// ByKindRegex returns every entity of the given kind whose name matches re.
func (p *Pool) ByKindRegex(kind string, re *regexp.Regexp) []Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Entity
	for _, id := range p.order {
		e := p.byID[id]
		if e != nil && e.Kind() == kind && re.MatchString(e.ObjectName()) {
			out = append(out, e)
		}
	}
	return out
}

// Rename changes ref's name to newName. No-op-but-emit when newName already
// equals the current name. Fails ObjectUnknown / ObjectExists otherwise.
func (p *Pool) Rename(ref string, newName string) error {
	p.checkReentrant()
	p.mu.Lock()
	e, ok := p.resolve(ref)
	if !ok {
		p.mu.Unlock()
		return kernelerr.ObjectUnknown(ref)
	}
	before := e.Clone()
	if e.ObjectName() == newName {
		p.mu.Unlock()
		p.recordMutation("rename", e.Kind())
		p.publish(eventbus.Event{Kind: eventbus.KindObjectModified, Type: e.Kind(), Current: e.Clone(), Previous: before})
		return nil
	}
	if _, collides := p.byName[newName]; collides {
		p.mu.Unlock()
		return kernelerr.ObjectExists(newName)
	}
	delete(p.byName, e.ObjectName())
	renamed := p.setName(e, newName)
	p.byID[renamed.ObjectID()] = renamed
	p.byName[newName] = renamed
	p.mu.Unlock()

	p.recordMutation("rename", renamed.Kind())
	p.publish(eventbus.Event{Kind: eventbus.KindObjectModified, Type: renamed.Kind(), Current: renamed.Clone(), Previous: before})
	return nil
}

// Renamer is implemented by entities that support Pool.Rename; it returns a
// clone with the name replaced.
type Renamer interface {
	WithName(name string) Entity
}

func (p *Pool) setName(e Entity, name string) Entity {
	if r, ok := e.(Renamer); ok {
		renamed := r.WithName(name)
		p.byID[e.ObjectID()] = renamed
		return renamed
	}
	return e
}

// Replace swaps the stored entity for updated (same ID and name) and emits
// OBJECT_MODIFIED with before/after snapshots. This is the primitive the
// model facade uses for every field-level mutation.
func (p *Pool) Replace(updated Entity) error {
	p.checkReentrant()
	p.mu.Lock()
	existing, ok := p.byID[updated.ObjectID()]
	if !ok {
		p.mu.Unlock()
		return kernelerr.ObjectUnknown(updated.ObjectName())
	}
	before := existing.Clone()
	if existing.ObjectName() != updated.ObjectName() {
		p.mu.Unlock()
		return kernelerr.IllegalArgument("Replace must not change name; use Rename")
	}
	p.byID[updated.ObjectID()] = updated
	p.byName[updated.ObjectName()] = updated
	p.mu.Unlock()

	p.recordMutation("setProperty", updated.Kind())
	p.publish(eventbus.Event{Kind: eventbus.KindObjectModified, Type: updated.Kind(), Current: updated.Clone(), Previous: before})
	return nil
}

// Remove deletes ref from the pool and emits OBJECT_REMOVED with the final
// snapshot. Callers that must cascade-delete dependents (the model facade)
// are responsible for performing those removals, in the fixed order their
// invariants require, before calling Remove on the root entity.
func (p *Pool) Remove(ref string) error {
	p.checkReentrant()
	p.mu.Lock()
	e, ok := p.resolve(ref)
	if !ok {
		p.mu.Unlock()
		return kernelerr.ObjectUnknown(ref)
	}
	delete(p.byID, e.ObjectID())
	delete(p.byName, e.ObjectName())
	for i, id := range p.order {
		if id == e.ObjectID() {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if p.ids != nil {
		p.ids.ReleaseID(e.ObjectID())
		p.ids.ReleaseName(e.ObjectName())
	}
	p.recordMutation("remove", e.Kind())
	p.publish(eventbus.Event{Kind: eventbus.KindObjectRemoved, Type: e.Kind(), Current: e.Clone()})
	return nil
}

// Clear empties the pool without emitting events, for use on model load.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[int]Entity)
	p.byName = make(map[string]Entity)
	p.order = nil
}

// Len returns the number of live entities.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}
