package battle

import "sync"

// Registry maps room ids to live room actors. Creation is an atomic
// check-and-create so two simultaneous first joiners always land in the
// same room; at most one actor per id exists at any time.
type Registry struct {
	opts  Options
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:  opts.withDefaults(),
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the live room for id, creating and starting its actor
// if none exists. An expired entry that has not been reaped yet is replaced.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[id]; ok && alive(room) {
		return room
	}
	room := newRoom(id, g.opts, nil)
	room.onClose = func() { g.remove(id, room) }
	g.rooms[id] = room
	go room.run()
	return room
}

// Get returns the live room for id without creating one.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	if !ok || !alive(room) {
		return nil, false
	}
	return room, true
}

// Len reports how many live rooms are registered.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, room := range g.rooms {
		if alive(room) {
			n++
		}
	}
	return n
}

// remove drops the entry only if it still points at the given actor, so a
// replacement room created under the same id is never reaped by accident.
func (g *Registry) remove(id string, room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.rooms[id]; ok && current == room {
		delete(g.rooms, id)
	}
}

func alive(room *Room) bool {
	select {
	case <-room.done:
		return false
	default:
		return true
	}
}
