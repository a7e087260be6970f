// Package roomservice implements the room manager: the registry of
// live rooms with lazy snapshot-backed load, dirty tracking, periodic
// snapshots, and idle eviction.
package roomservice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/repository"
	"github.com/robin-raq/collabboard/pkg/safego"
)

// FanOut receives every server-originated delta (origin=local, i.e. a
// tool execution) so the Connection Hub can wrap it in a wire frame
// and broadcast it to every joined client of the room. Deltas with
// origin=remote never reach this callback; the Hub's own message path
// already relayed those.
type FanOut func(roomID string, delta []byte)

// DocFactory builds a fresh empty Document for a room. Injected so
// tests can substitute their own engine and so the manager doesn't
// import the concrete crdt package.
type DocFactory func(roomID string) board.Document

// Options tunes the manager's background timers.
type Options struct {
	IdleTimeout      time.Duration
	SnapshotInterval time.Duration
	EvictInterval    time.Duration

	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

type entry struct {
	room *board.Room
}

// Manager owns the room registry. All registry-level operations are
// serialized under mu; Document mutations rely on the engine's own
// synchronization.
type Manager struct {
	store   repository.SnapshotStore
	newDoc  DocFactory
	logger  *zap.Logger
	now     func() time.Time
	opts    Options
	loads   singleflight.Group

	// conns is tracked separately from rooms so a connection that
	// joins while the document load is still in flight already blocks
	// eviction.
	mu    sync.Mutex
	rooms map[string]*entry
	conns map[string]int

	fanMu  sync.RWMutex
	fanOut FanOut
}

// NewManager builds a Manager over store. store may be a memory store
// when persistence is not configured; the manager never treats store
// failures as fatal.
func NewManager(store repository.SnapshotStore, newDoc DocFactory, opts Options, logger *zap.Logger) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Minute
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = 30 * time.Second
	}
	if opts.EvictInterval <= 0 {
		opts.EvictInterval = 5 * time.Minute
	}
	return &Manager{
		store:  store,
		newDoc: newDoc,
		logger: logger.With(zap.String("component", "room-manager")),
		now:    now,
		opts:   opts,
		rooms:  make(map[string]*entry),
		conns:  make(map[string]int),
	}
}

// SetFanOut wires the Connection Hub's broadcast path. Must be called
// before the first GetOrCreate so no server-originated delta is lost.
func (m *Manager) SetFanOut(fn FanOut) {
	m.fanMu.Lock()
	m.fanOut = fn
	m.fanMu.Unlock()
}

// GetOrCreate returns the live room, loading its snapshot on first
// reference. Concurrent callers for the same roomID share one
// in-flight load and receive the same *board.Room.
func (m *Manager) GetOrCreate(ctx context.Context, roomID string) (*board.Room, error) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		m.mu.Unlock()
		return e.room, nil
	}
	m.mu.Unlock()

	v, err, _ := m.loads.Do(roomID, func() (interface{}, error) {
		// Re-check: the room may have been installed between the fast
		// path and the singleflight slot being granted.
		m.mu.Lock()
		if e, ok := m.rooms[roomID]; ok {
			m.mu.Unlock()
			return e.room, nil
		}
		m.mu.Unlock()

		room := m.loadRoom(ctx, roomID)

		m.mu.Lock()
		m.rooms[roomID] = &entry{room: room}
		m.mu.Unlock()
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*board.Room), nil
}

// loadRoom builds the room's document, seeding it from the snapshot
// store when a row exists. Load failure starts empty.
func (m *Manager) loadRoom(ctx context.Context, roomID string) *board.Room {
	doc := m.newDoc(roomID)

	data, found, err := m.store.Load(ctx, roomID)
	switch {
	case err != nil:
		m.logger.Warn("snapshot load failed, starting empty",
			zap.String("room", roomID), zap.Error(err))
	case found:
		if err := doc.LoadState(data); err != nil {
			m.logger.Warn("snapshot decode failed, starting empty",
				zap.String("room", roomID), zap.Error(err))
			doc = m.newDoc(roomID)
		} else {
			m.logger.Info("room loaded from snapshot",
				zap.String("room", roomID), zap.Int("objects", doc.Len()))
		}
	}

	room := board.NewRoom(roomID, doc)

	// Mutation observer: every mutation dirties the room; only
	// server-originated deltas are pushed to the Hub. Remote deltas
	// were already relayed on the Hub's message path and re-forwarding
	// them here would duplicate every update.
	doc.OnUpdate(func(u board.Update) {
		room.MarkDirty()
		if u.Origin == board.OriginRemote {
			return
		}
		m.fanMu.RLock()
		fn := m.fanOut
		m.fanMu.RUnlock()
		if fn != nil {
			fn(roomID, u.Delta)
		}
	})

	return room
}

// Get returns the room if it is currently resident, without loading.
func (m *Manager) Get(roomID string) (*board.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rooms[roomID]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// Join records one more live connection on the room, blocking eviction.
func (m *Manager) Join(roomID string) {
	m.mu.Lock()
	m.conns[roomID]++
	if e, ok := m.rooms[roomID]; ok {
		e.room.Touch()
	}
	m.mu.Unlock()
}

// Leave records a connection departure.
func (m *Manager) Leave(roomID string) {
	m.mu.Lock()
	if m.conns[roomID] > 0 {
		m.conns[roomID]--
	}
	if m.conns[roomID] == 0 {
		delete(m.conns, roomID)
	}
	if e, ok := m.rooms[roomID]; ok {
		e.room.Touch()
	}
	m.mu.Unlock()
}

// Touch stamps the room's last_active.
func (m *Manager) Touch(roomID string) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		e.room.Touch()
	}
	m.mu.Unlock()
}

// MarkDirty flags the room for the next snapshot tick.
func (m *Manager) MarkDirty(roomID string) {
	m.mu.Lock()
	if e, ok := m.rooms[roomID]; ok {
		e.room.MarkDirty()
	}
	m.mu.Unlock()
}

// SnapshotTick saves every dirty room and clears its flag. The dirty
// set is drained atomically per room before the save so a mutation
// arriving mid-save re-dirties the room and re-qualifies it next tick.
// A failed save restores the flag.
func (m *Manager) SnapshotTick(ctx context.Context) {
	for _, room := range m.residentRooms() {
		if !room.ClearDirty() {
			continue
		}
		if err := m.saveRoom(ctx, room); err != nil {
			room.MarkDirty()
		}
	}
}

// EvictIdle destroys every room that has been idle past the timeout
// and has zero joined connections, saving it first if dirty.
func (m *Manager) EvictIdle(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	candidates := make([]*entry, 0)
	for id, e := range m.rooms {
		if m.conns[id] == 0 && e.room.IdleSince(now) > m.opts.IdleTimeout {
			candidates = append(candidates, e)
			delete(m.rooms, id)
		}
	}
	m.mu.Unlock()

	for _, e := range candidates {
		if e.room.ClearDirty() {
			// Best-effort: a failed save here loses the data, which is
			// acceptable when the operator runs without a store.
			if err := m.saveRoom(ctx, e.room); err != nil {
				m.logger.Warn("final save before eviction failed",
					zap.String("room", e.room.ID), zap.Error(err))
			}
		}
		m.logger.Info("room evicted", zap.String("room", e.room.ID))
	}
}

// FlushAll saves every dirty room. Called once on graceful shutdown.
func (m *Manager) FlushAll(ctx context.Context) {
	for _, room := range m.residentRooms() {
		if !room.ClearDirty() {
			continue
		}
		if err := m.saveRoom(ctx, room); err != nil {
			m.logger.Error("flush save failed", zap.String("room", room.ID), zap.Error(err))
		}
	}
}

func (m *Manager) saveRoom(ctx context.Context, room *board.Room) error {
	state, err := room.Doc.EncodeState()
	if err != nil {
		m.logger.Error("encode state failed", zap.String("room", room.ID), zap.Error(err))
		return err
	}
	if err := m.store.Save(ctx, room.ID, state); err != nil {
		m.logger.Warn("snapshot save failed", zap.String("room", room.ID), zap.Error(err))
		return err
	}
	m.logger.Debug("room snapshotted", zap.String("room", room.ID), zap.Int("bytes", len(state)))
	return nil
}

func (m *Manager) residentRooms() []*board.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*board.Room, 0, len(m.rooms))
	for _, e := range m.rooms {
		out = append(out, e.room)
	}
	return out
}

// RoomCount reports how many rooms are resident, for /health.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// RoomInfo is boardctl's operator view of one resident room.
type RoomInfo struct {
	ID          string `json:"id"`
	Objects     int    `json:"objects"`
	Connections int    `json:"connections"`
	Dirty       bool   `json:"dirty"`
	IdleSeconds int64  `json:"idle_seconds"`
}

// ListRooms reports every resident room, sorted by the caller if needed.
func (m *Manager) ListRooms() []RoomInfo {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RoomInfo, 0, len(m.rooms))
	for id, e := range m.rooms {
		out = append(out, RoomInfo{
			ID:          id,
			Objects:     e.room.Doc.Len(),
			Connections: m.conns[id],
			Dirty:       e.room.IsDirty(),
			IdleSeconds: int64(e.room.IdleSince(now).Seconds()),
		})
	}
	return out
}

// ForceSnapshot saves one room immediately regardless of its dirty
// flag, for the operator CLI.
func (m *Manager) ForceSnapshot(ctx context.Context, roomID string) error {
	room, ok := m.Get(roomID)
	if !ok {
		return nil
	}
	room.ClearDirty()
	return m.saveRoom(ctx, room)
}

// Start launches the snapshot and eviction loops. Each tick is
// independent work; an overrunning tick simply delays the next one.
func (m *Manager) Start(ctx context.Context) {
	safego.Go(m.logger, "snapshot-loop", func() {
		ticker := time.NewTicker(m.opts.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SnapshotTick(ctx)
			}
		}
	})

	safego.Go(m.logger, "eviction-loop", func() {
		ticker := time.NewTicker(m.opts.EvictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.EvictIdle(ctx)
			}
		}
	})
}
