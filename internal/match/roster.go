package match

import "sort"

// Roster holds the ordered queue and the active participants with their
// roles. An identity is never in both. Every active identity has an explicit
// role entry.
type Roster struct {
	queue  []ParticipantID
	active map[ParticipantID]Role
}

func NewRoster() *Roster {
	return &Roster{active: make(map[ParticipantID]Role)}
}

func (r *Roster) IsQueued(id ParticipantID) bool {
	return r.position(id) >= 0
}

func (r *Roster) position(id ParticipantID) int {
	for i, q := range r.queue {
		if q == id {
			return i
		}
	}
	return -1
}

// Enqueue appends id and returns its 1-based position.
func (r *Roster) Enqueue(id ParticipantID) int {
	r.queue = append(r.queue, id)
	return len(r.queue)
}

// Dequeue removes id from the queue, preserving the order of the others.
func (r *Roster) Dequeue(id ParticipantID) bool {
	i := r.position(id)
	if i < 0 {
		return false
	}
	r.queue = append(r.queue[:i], r.queue[i+1:]...)
	return true
}

func (r *Roster) QueueLen() int {
	return len(r.queue)
}

// Queue returns a copy of the queue in join order.
func (r *Roster) Queue() []ParticipantID {
	out := make([]ParticipantID, len(r.queue))
	copy(out, r.queue)
	return out
}

// SetQueue replaces the queue.
func (r *Roster) SetQueue(ids []ParticipantID) {
	r.queue = append(r.queue[:0:0], ids...)
}

func (r *Roster) ClearQueue() {
	r.queue = nil
}

// Activate moves ids into the active set as runners.
func (r *Roster) Activate(ids []ParticipantID) {
	for _, id := range ids {
		r.Dequeue(id)
		r.active[id] = Runner
	}
}

func (r *Roster) IsActive(id ParticipantID) bool {
	_, ok := r.active[id]
	return ok
}

func (r *Roster) Role(id ParticipantID) (Role, bool) {
	role, ok := r.active[id]
	return role, ok
}

// SetRole changes the role of an active participant. It reports false for
// identities that are not active.
func (r *Roster) SetRole(id ParticipantID, role Role) bool {
	if _, ok := r.active[id]; !ok {
		return false
	}
	r.active[id] = role
	return true
}

// Remove drops id from the active set.
func (r *Roster) Remove(id ParticipantID) bool {
	if _, ok := r.active[id]; !ok {
		return false
	}
	delete(r.active, id)
	return true
}

func (r *Roster) ActiveLen() int {
	return len(r.active)
}

// Active returns the active identities in sorted order.
func (r *Roster) Active() []ParticipantID {
	return r.WithRole(-1)
}

// WithRole returns the sorted active identities holding role. A negative
// role matches every identity.
func (r *Roster) WithRole(role Role) []ParticipantID {
	out := make([]ParticipantID, 0, len(r.active))
	for id, have := range r.active {
		if role < 0 || have == role {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns how many active participants hold role.
func (r *Roster) Count(role Role) int {
	n := 0
	for _, have := range r.active {
		if have == role {
			n++
		}
	}
	return n
}

// Roles returns a copy of the role map.
func (r *Roster) Roles() map[ParticipantID]Role {
	out := make(map[ParticipantID]Role, len(r.active))
	for id, role := range r.active {
		out[id] = role
	}
	return out
}

func (r *Roster) ClearActive() {
	r.active = make(map[ParticipantID]Role)
}
