package lobby

import (
	"errors"
	"time"
)

var (
	ErrRosterFull  = errors.New("roster is full")
	ErrHandleTaken = errors.New("handle is seated under another identity")
)

// Member is the membership record shared by every kind of moderated room.
type Member struct {
	Identity Identity  `json:"identity"`
	Handle   Handle    `json:"handle"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Seated is implemented by room-specific participant records that embed a Member.
type Seated interface {
	Seat() *Member
}

// Departure describes what happened when a member left.
type Departure struct {
	Member   Member
	WasHost  bool
	Promoted *Member // new host, nil when nobody was promoted
	Empty    bool
}

// Moderated is the contract a room's state offers to the transport layer:
// members join and leave by handle and exactly one live handle holds the host role.
type Moderated interface {
	Join(id Identity, h Handle) (previous Handle, err error)
	Leave(h Handle) (Departure, bool)
	IsHost(h Handle) bool
	Empty() bool
}

// Roster is an ordered member list with a single host.
// Members keep their join position across reconnects, so the front of the list is
// always the earliest joiner still present.
type Roster[M Seated] struct {
	Members      []M      `json:"members"`
	HostHandle   Handle   `json:"hostHandle"`
	HostIdentity Identity `json:"hostIdentity"`
}

func (r *Roster[M]) Len() int {
	return len(r.Members)
}

func (r *Roster[M]) ByIdentity(id Identity) (M, int) {
	for i, m := range r.Members {
		if m.Seat().Identity == id {
			return m, i
		}
	}
	var zero M
	return zero, -1
}

func (r *Roster[M]) ByHandle(h Handle) (M, int) {
	for i, m := range r.Members {
		if m.Seat().Handle == h {
			return m, i
		}
	}
	var zero M
	return zero, -1
}

// IsHost reports whether h is the live host handle.
func (r *Roster[M]) IsHost(h Handle) bool {
	return h != "" && r.HostHandle == h
}

// Attach seats id under handle h. A known identity keeps its record and position
// and only swaps its handle; previous is the handle it replaced. A new identity is
// built with create and appended, failing with ErrRosterFull at capacity.
//
// A handle holds at most one seat: attaching a second identity to a seated
// handle fails with ErrHandleTaken.
//
// The host role is granted when id is the recorded host identity or when the
// roster was empty before this call.
func (r *Roster[M]) Attach(id Identity, h Handle, capacity int, create func(Member) M) (m M, previous Handle, err error) {
	wasEmpty := len(r.Members) == 0

	if owner, idx := r.ByHandle(h); idx >= 0 && owner.Seat().Identity != id {
		var zero M
		return zero, "", ErrHandleTaken
	}

	if existing, idx := r.ByIdentity(id); idx >= 0 {
		seat := existing.Seat()
		previous = seat.Handle
		seat.Handle = h
		m = existing
	} else {
		if capacity > 0 && len(r.Members) >= capacity {
			var zero M
			return zero, "", ErrRosterFull
		}
		m = create(Member{Identity: id, Handle: h, JoinedAt: time.Now()})
		r.Members = append(r.Members, m)
	}

	if wasEmpty || r.HostIdentity == id {
		r.HostHandle = h
		r.HostIdentity = id
	}

	return m, previous, nil
}

// Detach removes the member bound to h and fails the host role over to the
// front of the roster when needed.
func (r *Roster[M]) Detach(h Handle) (Departure, bool) {
	m, idx := r.ByHandle(h)
	if idx < 0 {
		return Departure{}, false
	}

	r.Members = append(r.Members[:idx], r.Members[idx+1:]...)

	d := Departure{
		Member:  *m.Seat(),
		WasHost: r.IsHost(h),
		Empty:   len(r.Members) == 0,
	}

	if d.WasHost {
		if d.Empty {
			r.HostHandle = ""
		} else {
			next := *r.Members[0].Seat()
			r.HostHandle = next.Handle
			r.HostIdentity = next.Identity
			d.Promoted = &next
		}
	}

	return d, true
}

// Clear drops every member. The host identity survives so the previous host
// regains the role when it rejoins first.
func (r *Roster[M]) Clear() {
	r.Members = nil
	r.HostHandle = ""
}
