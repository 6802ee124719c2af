package chat

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"room-chat/internal/models"
)

const defaultQueueSize = 64

type connEntry struct {
	conn   Conn
	mu     sync.Mutex
	closed bool
	rooms  map[uuid.UUID]*roomSession
}

// Registry maps live connections to the rooms they joined.
//
// Lock order is connEntry.mu, then Registry.mu, then roomSession.mu.
// Registry.mu only guards the two maps and session reference counts;
// membership of a room is guarded by that room's own lock.
type Registry struct {
	mu        sync.Mutex
	rooms     map[uuid.UUID]*roomSession
	conns     map[string]*connEntry
	queueSize int
	log       *slog.Logger
}

// NewRegistry creates an empty registry. queueSize bounds each room's write queue.
func NewRegistry(log *slog.Logger, queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Registry{
		rooms:     make(map[uuid.UUID]*roomSession),
		conns:     make(map[string]*connEntry),
		queueSize: queueSize,
		log:       log,
	}
}

// Connect registers a live connection with no rooms.
func (r *Registry) Connect(conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID()]; ok {
		return fmt.Errorf("connection %s already registered", conn.ID())
	}
	r.conns[conn.ID()] = &connEntry{conn: conn, rooms: make(map[uuid.UUID]*roomSession)}
	return nil
}

// Disconnect removes the connection from every room it joined. It is
// idempotent and returns the rooms that were left.
func (r *Registry) Disconnect(connID string) []uuid.UUID {
	r.mu.Lock()
	entry, ok := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	entry.closed = true
	left := make([]*roomSession, 0, len(entry.rooms))
	for _, sess := range entry.rooms {
		sess.remove(connID)
		left = append(left, sess)
	}
	entry.rooms = nil
	entry.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(left))
	for _, sess := range left {
		ids = append(ids, sess.id)
		r.release(sess)
	}
	return ids
}

// Leave removes the connection from one room. It reports whether it was a member.
func (r *Registry) Leave(connID string, roomID uuid.UUID) bool {
	entry := r.entry(connID)
	if entry == nil {
		return false
	}
	entry.mu.Lock()
	sess, ok := entry.rooms[roomID]
	if ok {
		delete(entry.rooms, roomID)
		sess.remove(connID)
	}
	entry.mu.Unlock()
	if ok {
		r.release(sess)
	}
	return ok
}

// Identity returns the identity snapshot of a live connection.
func (r *Registry) Identity(connID string) (models.Identity, bool) {
	entry := r.entry(connID)
	if entry == nil {
		return models.Identity{}, false
	}
	return entry.conn.Identity(), true
}

// Conn returns a live connection by id.
func (r *Registry) Conn(connID string) (Conn, bool) {
	entry := r.entry(connID)
	if entry == nil {
		return nil, false
	}
	return entry.conn, true
}

// RoomsOf lists the rooms the connection is registered to, joining or joined.
func (r *Registry) RoomsOf(connID string) []uuid.UUID {
	entry := r.entry(connID)
	if entry == nil {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(entry.rooms))
	for id := range entry.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Members lists the connection ids registered to a room.
func (r *Registry) Members(roomID uuid.UUID) []string {
	r.mu.Lock()
	sess, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return sess.memberIDs()
}

// ActiveRooms is the number of live room sessions.
func (r *Registry) ActiveRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Connections is the number of registered connections.
func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) entry(connID string) *connEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[connID]
}

// acquireLocked returns the room's session, creating it on first use, and
// takes a reference on it. r.mu must be held.
func (r *Registry) acquireLocked(roomID uuid.UUID) *roomSession {
	sess, ok := r.rooms[roomID]
	if !ok {
		sess = newRoomSession(roomID, r.queueSize)
		r.rooms[roomID] = sess
		r.log.Debug("room session opened", "room_id", roomID)
	}
	sess.refs++
	return sess
}

func (r *Registry) acquire(roomID uuid.UUID) *roomSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquireLocked(roomID)
}

// release drops a reference. The last one stops the write queue and
// forgets the session.
func (r *Registry) release(sess *roomSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess.refs--
	if sess.refs > 0 {
		return
	}
	if r.rooms[sess.id] == sess {
		delete(r.rooms, sess.id)
	}
	close(sess.jobs)
	r.log.Debug("room session closed", "room_id", sess.id)
}

// subscribe registers the connection into the room's fan-out group as joining.
// Each membership holds one session reference.
func (r *Registry) subscribe(connID string, roomID uuid.UUID) (*Subscription, error) {
	entry := r.entry(connID)
	if entry == nil {
		return nil, ErrDisconnected
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, ErrDisconnected
	}
	if sess, ok := entry.rooms[roomID]; ok {
		sess.add(entry.conn)
		return &Subscription{registry: r, session: sess, connID: connID, rejoin: true}, nil
	}

	r.mu.Lock()
	sess := r.acquireLocked(roomID)
	r.mu.Unlock()
	entry.rooms[roomID] = sess
	sess.add(entry.conn)
	return &Subscription{registry: r, session: sess, connID: connID}, nil
}

// acquireJoined takes a session reference for a send, provided the
// connection has completed its join of the room.
func (r *Registry) acquireJoined(connID string, roomID uuid.UUID) (*roomSession, error) {
	entry := r.entry(connID)
	if entry == nil {
		return nil, ErrDisconnected
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	sess, ok := entry.rooms[roomID]
	if !ok || !sess.isJoined(connID) {
		return nil, ErrNotJoined
	}
	r.mu.Lock()
	sess.refs++
	r.mu.Unlock()
	return sess, nil
}

// Subscription is the handle of a join in progress. Cancel must be called on
// every exit path; it is a no-op once Commit succeeded.
type Subscription struct {
	registry  *Registry
	session   *roomSession
	connID    string
	rejoin    bool
	committed bool
}

// Commit delivers the history snapshot and marks the membership joined.
func (s *Subscription) Commit(history []models.ResolvedMessage) error {
	if err := s.session.activate(s.connID, history); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Cancel undoes an uncommitted join. A failed re-join keeps the earlier membership.
func (s *Subscription) Cancel() {
	if s.committed {
		return
	}
	s.committed = true
	if s.rejoin {
		if err := s.session.restore(s.connID); err == nil {
			return
		}
	}
	s.registry.Leave(s.connID, s.session.id)
}
