package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/tiiuae/ghaf-givc/internal/obs/logging"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

const broadcastBuffer = 16

// Registry is the admin process's sole source of truth for known units. All
// mutating operations hold mu only for the duration of the in-memory update
// and the subsequent (non-blocking) event fan-out: no I/O happens under the
// lock.
type Registry struct {
	mu      sync.Mutex
	entries map[string]RegistryEntry
	order   []string // insertion order, for deterministic query_list/iteration

	subMu       sync.Mutex
	subscribers []chan Event

	log *logging.Logger
}

func New(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Default()
	}
	return &Registry{
		entries: make(map[string]RegistryEntry),
		log:     log,
	}
}

// publish delivers ev to every subscriber's buffered channel, dropping (and
// logging) for any subscriber whose buffer is full. Must be called without
// holding r.mu (subscriber sends should never block registry mutations, and
// subMu is a distinct lock).
func (r *Registry) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			r.log.WithFields(map[string]interface{}{
				"event": ev.Kind.String(),
				"unit":  ev.Result.Name,
			}).Warn("subscriber buffer full, event dropped")
		}
	}
}

// Register inserts entry. If a prior entry of the same name existed, a
// UnitShutdown(old) event is emitted strictly before UnitRegistered(new).
func (r *Registry) Register(entry RegistryEntry) {
	r.mu.Lock()
	old, existed := r.entries[entry.Name]
	if !existed {
		r.order = append(r.order, entry.Name)
	}
	r.entries[entry.Name] = entry
	r.mu.Unlock()

	if existed {
		r.publish(Event{Kind: EventUnitShutdown, Result: old.Query()})
	}
	r.publish(Event{Kind: EventUnitRegistered, Result: entry.Query()})
	r.log.LogUnitEvent(context.Background(), "registered", entry.Name)
}

// Deregister removes name and every entry whose AgentName or VMName equals
// it (cascade); removing a manager additionally takes down every entry
// belonging to the VM it represents, so a dead agent drags its VM unit and
// apps out of the registry with it. The cascade set is computed up front
// under the lock; one UnitShutdown is emitted per removed entry, in removal
// (insertion) order, with the original included in that set rather than
// appended last.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	target, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("deregister: %q not registered", name)
	}
	cascadeVM := ""
	if target.Type.Service == units.Mgr {
		cascadeVM = target.VMName()
	}

	var removed []RegistryEntry
	var remainingOrder []string
	for _, n := range r.order {
		e := r.entries[n]
		if n == name || e.AgentName() == name || e.VMName() == name ||
			(cascadeVM != "" && e.VMName() == cascadeVM) {
			removed = append(removed, e)
			delete(r.entries, n)
			continue
		}
		remainingOrder = append(remainingOrder, n)
	}
	r.order = remainingOrder
	r.mu.Unlock()

	for _, e := range removed {
		r.publish(Event{Kind: EventUnitShutdown, Result: e.Query()})
		r.log.LogUnitEvent(context.Background(), "shutdown", e.Name)
	}
	return nil
}

// UpdateState mutates name's status in place and emits UnitStatusChanged.
func (r *Registry) UpdateState(name string, status units.UnitStatus) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("update_state: %q not registered", name)
	}
	e.Status = status
	r.entries[name] = e
	r.mu.Unlock()

	r.publish(Event{Kind: EventUnitStatusChanged, Result: e.Query()})
	return nil
}

// Subscribe returns a snapshot of current entries plus a channel delivering
// events that occur strictly after the snapshot was taken. Slow subscribers
// may lose events once the bounded buffer (16) fills; loss is logged, not
// guaranteed delivered.
func (r *Registry) Subscribe() ([]RegistryEntry, <-chan Event) {
	ch := make(chan Event, broadcastBuffer)

	r.mu.Lock()
	snapshot := make([]RegistryEntry, 0, len(r.order))
	for _, n := range r.order {
		snapshot = append(snapshot, r.entries[n])
	}
	r.mu.Unlock()

	r.subMu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.subMu.Unlock()

	return snapshot, ch
}

// Unsubscribe removes the subscriber channel previously returned by
// Subscribe; events already buffered remain readable until drained.
func (r *Registry) Unsubscribe(ch <-chan Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for i, sub := range r.subscribers {
		if (<-chan Event)(sub) == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			return
		}
	}
}

// CreateUniqueEntryName returns "base@k.service" for the smallest k>=0 not
// already present in the registry.
func (r *Registry) CreateUniqueEntryName(base string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := 0; ; k++ {
		name := units.IndexedUnit(base, k)
		if _, ok := r.entries[name]; !ok {
			return name
		}
	}
}

// ByName returns the entry named name, if present.
func (r *Registry) ByName(name string) (RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// ByPrefix returns every entry whose name starts with prefix, in insertion
// order.
func (r *Registry) ByPrefix(prefix string) []RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RegistryEntry
	for _, n := range r.order {
		if len(n) >= len(prefix) && n[:len(prefix)] == prefix {
			out = append(out, r.entries[n])
		}
	}
	return out
}

// ByType returns every entry of the given UnitType, in insertion order.
func (r *Registry) ByType(t units.UnitType) []RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RegistryEntry
	for _, n := range r.order {
		if e := r.entries[n]; e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ExactlyOneByType returns the single entry of type t, erroring if zero or
// more than one exists. Used for resolving singleton managers like the
// Host.
func (r *Registry) ExactlyOneByType(t units.UnitType) (RegistryEntry, error) {
	matches := r.ByType(t)
	switch len(matches) {
	case 0:
		return RegistryEntry{}, fmt.Errorf("no entry of type %s registered", t)
	case 1:
		return matches[0], nil
	default:
		return RegistryEntry{}, fmt.Errorf("expected exactly one entry of type %s, found %d", t, len(matches))
	}
}

// FindMap scans entries in insertion order, returning the first one for
// which pred reports true.
func (r *Registry) FindMap(pred func(RegistryEntry) bool) (RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.order {
		if e := r.entries[n]; pred(e) {
			return e, true
		}
	}
	return RegistryEntry{}, false
}

// All returns a snapshot of every entry, in insertion order.
func (r *Registry) All() []RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegistryEntry, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.entries[n])
	}
	return out
}

// Count returns the number of registered entries.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
