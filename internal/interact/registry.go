package interact

import "sort"

// Registration describes one addressable visual element.
type Registration struct {
	ID        string
	SectionID string
	Layer     string

	// Ref is opaque host data (a DOM node, a render handle). The
	// coordinator never inspects it.
	Ref any
}

// entry pairs a registration with its generation stamp and the
// attention-map unregister hook it owns.
type entry struct {
	reg       Registration
	gen       int64
	mindUnreg func()
}

// registry stores live registrations by element id. Re-registering an
// id displaces the old entry; generation stamps keep a displaced
// entry's unregister closure from removing its successor.
type registry struct {
	entries map[string]*entry
	gen     int64
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

// put installs a registration and returns its entry plus whatever it
// displaced.
func (r *registry) put(reg Registration, mindUnreg func()) (installed, displaced *entry) {
	displaced = r.entries[reg.ID]
	r.gen++
	installed = &entry{reg: reg, gen: r.gen, mindUnreg: mindUnreg}
	r.entries[reg.ID] = installed
	return installed, displaced
}

// remove deletes the entry for id only if its generation matches.
func (r *registry) remove(id string, gen int64) (*entry, bool) {
	e, ok := r.entries[id]
	if !ok || e.gen != gen {
		return nil, false
	}
	delete(r.entries, id)
	return e, true
}

func (r *registry) get(id string) (Registration, bool) {
	e, ok := r.entries[id]
	if !ok {
		return Registration{}, false
	}
	return e.reg, true
}

func (r *registry) len() int {
	return len(r.entries)
}

// ids lists registered element ids in sorted order for deterministic
// diagnostics.
func (r *registry) ids() []string {
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
