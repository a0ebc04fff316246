package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrRoomExists is returned when creating a room under an id that is already live.
var ErrRoomExists = errors.New("room already exists")

// Registry owns every live room in the process, keyed by room id.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	deps  RoomDeps
}

// NewRegistry returns an empty registry. deps are shared by every room it creates,
// except Rand: each room seeds its own generator.
func NewRegistry(deps RoomDeps) *Registry {
	deps.Rand = nil
	return &Registry{rooms: make(map[string]*Room), deps: deps}
}

// Create starts a room under a fresh id.
func (g *Registry) Create(cfg RoomConfig) (*Room, error) {
	return g.CreateWithID(uuid.NewString(), cfg)
}

// CreateWithID starts a room under id.
func (g *Registry) CreateWithID(id string, cfg RoomConfig) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}

	deps := g.deps
	onClose := deps.OnClose
	deps.OnClose = func(roomID string) {
		g.remove(roomID)
		if onClose != nil {
			onClose(roomID)
		}
	}
	room, err := NewRoom(id, cfg, deps)
	if err != nil {
		return nil, err
	}
	g.rooms[id] = room
	return room, nil
}

func (g *Registry) remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, id)
}

// Get returns the live room with the given id.
func (g *Registry) Get(id string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// Destroy closes the room and waits until it is gone.
func (g *Registry) Destroy(id string) error {
	room, err := g.Get(id)
	if err != nil {
		return err
	}
	room.Close()
	return nil
}

// List returns a summary of every live room ordered by id.
func (g *Registry) List() []RoomInfo {
	g.mu.RLock()
	infos := make([]RoomInfo, 0, len(g.rooms))
	for _, room := range g.rooms {
		infos = append(infos, room.Info())
	}
	g.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// FindOpen returns a waiting room with a free seat that satisfies match, if any.
func (g *Registry) FindOpen(match func(RoomInfo) bool) (*Room, bool) {
	for _, info := range g.List() {
		if !info.Open() || (match != nil && !match(info)) {
			continue
		}
		if room, err := g.Get(info.ID); err == nil {
			return room, true
		}
	}
	return nil, false
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Shutdown closes every room, returning early if ctx ends first.
func (g *Registry) Shutdown(ctx context.Context) error {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()

	for _, room := range rooms {
		room.signalQuit()
	}
	for _, room := range rooms {
		select {
		case <-room.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
