package lobby

import (
	"encoding/json"
	"slices"
)

// Identity is the stable key of a participant across reconnects (its display name).
type Identity string

// Handle is the transport connection id currently bound to an identity.
// It changes every time the participant reconnects.
type Handle string

// HandleSet is an unordered set of handles. It serialises as a sorted JSON array
// so snapshots and stored records are order-stable.
type HandleSet map[Handle]struct{}

func NewHandleSet() HandleSet {
	return make(HandleSet)
}

func (s HandleSet) Add(h Handle) {
	s[h] = struct{}{}
}

func (s HandleSet) Has(h Handle) bool {
	_, ok := s[h]
	return ok
}

func (s HandleSet) Remove(h Handle) {
	delete(s, h)
}

func (s HandleSet) Len() int {
	return len(s)
}

// Rename moves membership from old to new. It is a no-op when old is absent.
func (s HandleSet) Rename(old, new Handle) {
	if !s.Has(old) {
		return
	}
	delete(s, old)
	s[new] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s HandleSet) Sorted() []Handle {
	out := make([]Handle, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Strings is Sorted converted for wire payloads.
func (s HandleSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, h := range sorted {
		out[i] = string(h)
	}
	return out
}

func (s HandleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *HandleSet) UnmarshalJSON(data []byte) error {
	var list []Handle
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	set := make(HandleSet, len(list))
	for _, h := range list {
		set.Add(h)
	}
	*s = set
	return nil
}
