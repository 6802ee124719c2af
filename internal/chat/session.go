package chat

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"room-chat/internal/models"
)

// errNotMember reports a membership removed while its join was in progress.
var errNotMember = errors.New("not a room member")

type member struct {
	conn Conn
	// joining members buffer broadcasts until their history snapshot is delivered.
	joining bool
	pending []models.RoomEvent
}

// roomSession is the live fan-out group of one room plus its write queue.
// mu guards members only; refs is guarded by Registry.mu.
type roomSession struct {
	id      uuid.UUID
	mu      sync.Mutex
	members map[string]*member
	refs    int
	jobs    chan func()
}

func newRoomSession(id uuid.UUID, queueSize int) *roomSession {
	s := &roomSession{
		id:      id,
		members: make(map[string]*member),
		jobs:    make(chan func(), queueSize),
	}
	go s.run()
	return s
}

// run executes queued sends and deletions one at a time, in submission order.
// It exits once the registry closes jobs after the last reference is released.
func (s *roomSession) run() {
	for job := range s.jobs {
		job()
	}
}

// add registers conn as joining. It reports whether conn was already a member.
func (s *roomSession) add(conn Conn) (existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[conn.ID()]; ok {
		m.joining = true
		return true
	}
	s.members[conn.ID()] = &member{conn: conn, joining: true}
	return false
}

func (s *roomSession) remove(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[connID]; !ok {
		return false
	}
	delete(s.members, connID)
	return true
}

// activate delivers history to a joining member, then the broadcasts it
// buffered meanwhile minus those already contained in history.
func (s *roomSession) activate(connID string, history []models.ResolvedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[connID]
	if !ok {
		return errNotMember
	}
	if err := m.conn.Deliver(models.NewHistoryEvent(s.id, history)); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(history))
	for _, msg := range history {
		seen[msg.ID] = struct{}{}
	}
	pending := m.pending
	m.pending = nil
	m.joining = false
	for _, evt := range pending {
		if id, ok := evt.MessageID(); ok {
			if _, dup := seen[id]; dup {
				continue
			}
		}
		if err := m.conn.Deliver(evt); err != nil {
			return err
		}
	}
	return nil
}

// restore returns a re-joining member to the joined state without new history.
func (s *roomSession) restore(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[connID]
	if !ok {
		return errNotMember
	}
	pending := m.pending
	m.pending = nil
	m.joining = false
	for _, evt := range pending {
		if err := m.conn.Deliver(evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *roomSession) isJoined(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[connID]
	return ok && !m.joining
}

// broadcast delivers evt to the current membership and returns the
// connections that failed to take it.
func (s *roomSession) broadcast(evt models.RoomEvent) (delivered int, faulted []Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.joining {
			m.pending = append(m.pending, evt)
			continue
		}
		if err := m.conn.Deliver(evt); err != nil {
			faulted = append(faulted, m.conn)
			continue
		}
		delivered++
	}
	return delivered, faulted
}

func (s *roomSession) memberIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	return ids
}
