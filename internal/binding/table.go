package binding

import "github.com/kbusd/kbus/internal/wire"

// Table is the ordered set of live bindings on one device.
type Table struct {
	nextID   uint64
	bindings []Binding
}

// NewTable creates an empty binding table.
func NewTable() *Table {
	return &Table{}
}

func validateName(name string) error {
	if len(name) > wire.MaxNameLen {
		return ErrNameTooLong
	}
	if !wire.ValidForBind(name) {
		return ErrBadName
	}
	return nil
}

// Bind adds (ownerID, role, name) to the table. If role is Replier and a
// Replier binding already exists with the exact same pattern string, Bind
// fails with ErrAlreadyBound — the uniqueness invariant is over the literal
// pattern, not over which names it would match (spec.md §3: "at most one
// binding with is_replier=true exists per exact name per device").
//
// Binding as Replier to the reserved wildcard $.KBUS.ReplierBindEvent is
// always rejected (spec.md §3, §8).
func (t *Table) Bind(ownerID uint32, role Role, name string) (Binding, error) {
	if err := validateName(name); err != nil {
		return Binding{}, err
	}
	kind, _ := wire.Classify(name)
	if role == Replier && name == wire.NameReplierBindEvent {
		return Binding{}, ErrReservedName
	}
	if role == Replier {
		for _, b := range t.bindings {
			if b.Role == Replier && b.Pattern == name {
				return Binding{}, ErrAlreadyBound
			}
		}
	}
	t.nextID++
	b := Binding{ID: t.nextID, OwnerID: ownerID, Role: role, Pattern: name, kind: kind}
	t.bindings = append(t.bindings, b)
	return b, nil
}

// Unbind removes the (ownerID, role, name) binding and returns it.
func (t *Table) Unbind(ownerID uint32, role Role, name string) (Binding, error) {
	for i, b := range t.bindings {
		if b.OwnerID == ownerID && b.Role == role && b.Pattern == name {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			return b, nil
		}
	}
	return Binding{}, ErrNotFound
}

// UnbindByID removes a specific binding by its stable id, used when
// releasing a Ksock (spec.md §4.5 step 4) rather than by (owner, role,
// name) lookup.
func (t *Table) UnbindByID(id uint64) (Binding, bool) {
	for i, b := range t.bindings {
		if b.ID == id {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			return b, true
		}
	}
	return Binding{}, false
}

// RemoveOwner removes every binding owned by ownerID (Ksock release) and
// returns them in table order.
func (t *Table) RemoveOwner(ownerID uint32) []Binding {
	var removed []Binding
	kept := t.bindings[:0]
	for _, b := range t.bindings {
		if b.OwnerID == ownerID {
			removed = append(removed, b)
		} else {
			kept = append(kept, b)
		}
	}
	t.bindings = kept
	return removed
}

// FindReplierExact performs the exact-match lookup spec.md §4.2 defines
// for find_replier: the binding's pattern must equal name byte-for-byte.
func (t *Table) FindReplierExact(name string) (uint32, bool) {
	for _, b := range t.bindings {
		if b.Role == Replier && b.Pattern == name {
			return b.OwnerID, true
		}
	}
	return 0, false
}

// FindListeners computes the routing engine's candidate set for name: every
// Listener binding whose pattern matches name (possibly the same Ksock more
// than once, if it holds multiple matching bindings — spec.md §9 says not
// to deduplicate by name), plus the most specific matching Replier binding,
// if any, returned separately and excluded from the listener slice.
func (t *Table) FindListeners(name string) (listeners []Binding, replier *Binding) {
	bestSpecificity := -1
	for _, b := range t.bindings {
		if !wire.Matches(b.Pattern, name) {
			continue
		}
		switch b.Role {
		case Listener:
			listeners = append(listeners, b)
		case Replier:
			s := wire.Specificity(b.kind)
			if s > bestSpecificity {
				bCopy := b
				replier = &bCopy
				bestSpecificity = s
			}
		}
	}
	return listeners, replier
}

// Lookup returns the binding owned by ownerID with the given role and
// exactly the given pattern, if any — used to find "exactly this binding"
// when generating Replier.Unbound messages on unbind (spec.md §4.2). At
// most one binding matches, since (owner, role, pattern) is the
// bind/unbind key.
func (t *Table) Lookup(ownerID uint32, role Role, pattern string) (Binding, bool) {
	for _, b := range t.bindings {
		if b.OwnerID == ownerID && b.Role == role && b.Pattern == pattern {
			return b, true
		}
	}
	return Binding{}, false
}

// Len reports the number of live bindings, for invariant checks (spec.md §8:
// "after closing every Ksock... binding table... [is] empty").
func (t *Table) Len() int {
	return len(t.bindings)
}
