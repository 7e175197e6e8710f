package relay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mossy-p/audio-relay/internal/metrics"
)

// Member is one entry of a room snapshot.
type Member struct {
	Peer    string
	Channel Channel
}

// room keeps members in join order so member lists are stable.
type room struct {
	peers map[string]Channel
	order []string
}

// Registry maps room id -> peer id -> channel. It is the only record of
// who is in which room; every membership change goes through it.
//
// A single mutex serializes all mutations. Readers copy what they need and
// release the lock before doing any I/O.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	maxPeers int
	peers    int
}

// NewRegistry creates an empty registry admitting at most maxPeers per room.
func NewRegistry(maxPeers int) *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		maxPeers: maxPeers,
	}
}

// MaxPeers is the per-room admission ceiling.
func (r *Registry) MaxPeers() int { return r.maxPeers }

// Register adds peer to roomID and returns the member ids after the insert,
// in join order. A full room yields ErrRoomFull and a taken peer id yields
// ErrPeerExists; neither mutates state. The room is created here and only here.
func (r *Registry) Register(roomID, peer string, ch Channel) ([]string, error) {
	return r.Admit(roomID, peer, ch, nil)
}

// Admit is Register with a hook. onJoin runs with the registry locked, right
// after the insert and before any other member can see the new peer. If it
// fails the insert is undone and its error returned. onJoin must not block
// or call back into the registry.
func (r *Registry) Admit(roomID, peer string, ch Channel, onJoin func(members []string) error) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[roomID]
	if exists {
		if _, taken := rm.peers[peer]; taken {
			return nil, fmt.Errorf("register %q in %q: %w", peer, roomID, ErrPeerExists)
		}
		if len(rm.peers) >= r.maxPeers {
			return nil, fmt.Errorf("register %q in %q: %w", peer, roomID, ErrRoomFull)
		}
	} else {
		if r.maxPeers <= 0 {
			return nil, fmt.Errorf("register %q in %q: %w", peer, roomID, ErrRoomFull)
		}
		rm = &room{peers: make(map[string]Channel)}
		r.rooms[roomID] = rm
	}

	rm.peers[peer] = ch
	rm.order = append(rm.order, peer)
	members := append([]string(nil), rm.order...)

	if onJoin != nil {
		if err := onJoin(members); err != nil {
			r.remove(roomID, rm, peer)
			return nil, err
		}
	}

	r.peers++
	r.updateGauges()
	return members, nil
}

// Unregister removes peer from roomID and prunes the room once empty.
// It reports whether anything was removed; repeated calls are no-ops.
func (r *Registry) Unregister(roomID, peer string) bool {
	return r.Leave(roomID, peer, nil)
}

// Leave is Unregister with a hook run under the registry lock once the peer
// is gone. onLeave is not called when there was nothing to remove.
func (r *Registry) Leave(roomID, peer string, onLeave func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return false
	}
	if _, ok := rm.peers[peer]; !ok {
		return false
	}

	r.remove(roomID, rm, peer)
	r.peers--
	r.updateGauges()

	if onLeave != nil {
		onLeave()
	}
	return true
}

// remove drops peer from rm and prunes the room. Must hold r.mu.
func (r *Registry) remove(roomID string, rm *room, peer string) {
	delete(rm.peers, peer)
	for i, p := range rm.order {
		if p == peer {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	if len(rm.peers) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members returns a point-in-time copy of the room's members in join order.
// An unknown room has no members; it is never created by a lookup.
func (r *Registry) Members(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil
	}
	out := make([]Member, 0, len(rm.order))
	for _, p := range rm.order {
		out = append(out, Member{Peer: p, Channel: rm.peers[p]})
	}
	return out
}

// PeerIDs lists the room's member ids in join order, or nil if it does not exist.
func (r *Registry) PeerIDs(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil
	}
	return append([]string(nil), rm.order...)
}

// Lookup returns the channel bound to peer in roomID.
func (r *Registry) Lookup(roomID, peer string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil, false
	}
	ch, ok := rm.peers[peer]
	return ch, ok
}

// Rooms returns every room id with its member count.
func (r *Registry) Rooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for id, rm := range r.rooms {
		out[id] = len(rm.peers)
	}
	return out
}

// RoomIDs is Rooms' keys in sorted order.
func (r *Registry) RoomIDs() []string {
	rooms := r.Rooms()
	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// must hold r.mu
func (r *Registry) updateGauges() {
	metrics.RoomsActive.Set(float64(len(r.rooms)))
	metrics.PeersActive.Set(float64(r.peers))
}
