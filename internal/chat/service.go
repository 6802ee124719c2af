package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"room-chat/internal/models"
	"room-chat/internal/observability"
	"room-chat/internal/telemetry"
)

var tracer = otel.Tracer("room-chat/chat")

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	SendTimeout   time.Duration
	MaxBodyLength int
	Audit         *telemetry.AuditEmitter
	Clock         func() time.Time
}

// Service runs the room protocol: join with history replay, send with
// per-room ordered persistence and broadcast, leave and disconnect.
type Service struct {
	registry *Registry
	rooms    RoomDirectory
	store    MessageStore
	users    UserDirectory
	log      *slog.Logger

	audit         *telemetry.AuditEmitter
	now           func() time.Time
	sendTimeout   time.Duration
	maxBodyLength int
}

// NewService wires the room protocol to its collaborators.
func NewService(registry *Registry, rooms RoomDirectory, store MessageStore, users UserDirectory, log *slog.Logger, opts Options) *Service {
	s := &Service{
		registry:      registry,
		rooms:         rooms,
		store:         store,
		users:         users,
		log:           log,
		audit:         opts.Audit,
		now:           opts.Clock,
		sendTimeout:   opts.SendTimeout,
		maxBodyLength: opts.MaxBodyLength,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = 10 * time.Second
	}
	if s.maxBodyLength <= 0 {
		s.maxBodyLength = 4000
	}
	return s
}

// Registry exposes the connection registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Connect registers a live connection. Room operations of a connection
// whose identity has no id are rejected.
func (s *Service) Connect(conn Conn) error {
	if err := s.registry.Connect(conn); err != nil {
		return err
	}
	observability.SetActiveRooms(s.registry.ActiveRooms())
	return nil
}

// Disconnect leaves every room of the connection immediately.
func (s *Service) Disconnect(connID string) {
	left := s.registry.Disconnect(connID)
	observability.SetActiveRooms(s.registry.ActiveRooms())
	if len(left) > 0 {
		s.log.Debug("connection left rooms", "conn_id", connID, "rooms", len(left))
	}
}

// Join authorizes the connection for the room, registers it into the room's
// fan-out group and sends it the room history as a single event.
func (s *Service) Join(ctx context.Context, connID, rawRoomID string) (err error) {
	ctx, span := tracer.Start(ctx, "chat.join", trace.WithAttributes(
		attribute.String("conn_id", connID),
		attribute.String("room_id", rawRoomID),
	))
	defer func() { endSpan(span, err) }()
	defer func() { observability.IncJoin(resultLabel(err)) }()

	identity, ok := s.registry.Identity(connID)
	if !ok {
		return ErrDisconnected
	}
	if identity.ID == uuid.Nil {
		return ErrUnauthenticated
	}
	roomID, err := ParseRoomID(rawRoomID)
	if err != nil {
		return err
	}
	if _, err = s.authorize(ctx, identity, roomID); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.emitAudit(ctx, "ERROR", "join denied", identity)
		}
		return err
	}

	sub, err := s.registry.subscribe(connID, roomID)
	if err != nil {
		return err
	}
	defer sub.Cancel()
	observability.SetActiveRooms(s.registry.ActiveRooms())

	// A deletion that finished before registration is only visible in the
	// directory; one that runs later evicts this membership.
	if _, err = s.lookupRoom(ctx, roomID); err != nil {
		return err
	}

	// The snapshot is taken after registration so a concurrent send is seen
	// either in history or live.
	history, err := s.history(ctx, roomID)
	if err != nil {
		return err
	}
	if err = sub.Commit(history); err != nil {
		if errors.Is(err, errNotMember) {
			if _, live := s.registry.Conn(connID); !live {
				return ErrDisconnected
			}
			return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		if conn, ok := s.registry.Conn(connID); ok {
			s.dropFaulted([]Conn{conn}, err)
		}
		return err
	}
	observability.ObserveHistorySize(len(history))
	s.log.Debug("room joined", "conn_id", connID, "room_id", roomID, "user_id", identity.ID, "history", len(history))
	s.emitAudit(ctx, "INFO", "room joined", identity)
	return nil
}

// Send persists a message and broadcasts it to every member of the room,
// sender included. Whitespace-only bodies are dropped without error.
func (s *Service) Send(ctx context.Context, connID, rawRoomID, body string) (err error) {
	ctx, span := tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("conn_id", connID),
		attribute.String("room_id", rawRoomID),
	))
	defer func() { endSpan(span, err) }()

	identity, ok := s.registry.Identity(connID)
	if !ok {
		return ErrDisconnected
	}
	if identity.ID == uuid.Nil {
		observability.IncMessage(resultLabel(ErrUnidentified))
		return ErrUnidentified
	}
	roomID, err := ParseRoomID(rawRoomID)
	if err != nil {
		observability.IncMessage(resultLabel(err))
		return err
	}
	if strings.TrimSpace(body) == "" {
		observability.IncMessage("dropped")
		return nil
	}
	if utf8.RuneCountInString(body) > s.maxBodyLength {
		err = fmt.Errorf("%w: message longer than %d characters", ErrInvalidInput, s.maxBodyLength)
		observability.IncMessage(resultLabel(err))
		return err
	}

	sess, err := s.registry.acquireJoined(connID, roomID)
	if err != nil {
		observability.IncMessage(resultLabel(err))
		return err
	}

	// The job outlives a cancelled caller: an accepted send always completes.
	jobCtx := context.WithoutCancel(ctx)
	errc := make(chan error, 1)
	job := func() {
		defer s.registry.release(sess)
		err := s.commitSend(jobCtx, sess, identity, roomID, body)
		observability.IncMessage(resultLabel(err))
		errc <- err
	}
	select {
	case sess.jobs <- job:
	case <-ctx.Done():
		s.registry.release(sess)
		return ctx.Err()
	}

	select {
	case err = <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commitSend runs on the room's write queue.
func (s *Service) commitSend(ctx context.Context, sess *roomSession, identity models.Identity, roomID uuid.UUID, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, identity, roomID); err != nil {
		return err
	}
	msg, err := s.store.Append(ctx, roomID, identity.ID, body, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		s.log.Error("message append failed", "room_id", roomID, "user_id", identity.ID, "error", err)
		return fmt.Errorf("%w: append: %v", ErrStorageFailure, err)
	}

	resolved := msg.Resolve(s.currentAuthor(ctx, identity))
	delivered, faulted := sess.broadcast(models.NewMessageEvent(resolved))
	if len(faulted) > 0 {
		s.dropFaulted(faulted, errors.New("broadcast delivery failed"))
	}
	s.log.Debug("message broadcast", "room_id", roomID, "message_id", msg.ID, "delivered", delivered)
	s.emitAudit(ctx, "INFO", "message sent", identity)
	return nil
}

// Leave removes the connection from one room.
func (s *Service) Leave(connID, rawRoomID string) error {
	roomID, err := ParseRoomID(rawRoomID)
	if err != nil {
		return err
	}
	if !s.registry.Leave(connID, roomID) {
		return ErrNotJoined
	}
	observability.SetActiveRooms(s.registry.ActiveRooms())
	return nil
}

// History returns the resolved history of a room the identity may access.
func (s *Service) History(ctx context.Context, identity models.Identity, roomID uuid.UUID) ([]models.ResolvedMessage, error) {
	if identity.ID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if _, err := s.authorize(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.history(ctx, roomID)
}

// DeleteRoom removes a room and its messages, serialized with the room's
// pending sends, and evicts every member. Only the owner or an admin may.
func (s *Service) DeleteRoom(ctx context.Context, identity models.Identity, roomID uuid.UUID) error {
	room, err := s.lookupRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !CanDelete(identity, room) {
		return fmt.Errorf("%w: only the owner or an admin may delete room %s", ErrUnauthorized, roomID)
	}

	sess := s.registry.acquire(roomID)
	jobCtx := context.WithoutCancel(ctx)
	errc := make(chan error, 1)
	job := func() {
		defer s.registry.release(sess)
		errc <- s.commitDelete(jobCtx, sess, identity)
	}
	select {
	case sess.jobs <- job:
	case <-ctx.Done():
		s.registry.release(sess)
		return ctx.Err()
	}
	select {
	case err = <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) commitDelete(ctx context.Context, sess *roomSession, identity models.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.rooms.DeleteRoom(ctx, sess.id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("room %s: %w", sess.id, ErrNotFound)
		}
		return fmt.Errorf("%w: delete room: %v", ErrStorageFailure, err)
	}
	if err := s.store.DeleteAll(ctx, sess.id); err != nil {
		s.log.Error("room messages not deleted", "room_id", sess.id, "error", err)
		return fmt.Errorf("%w: delete messages: %v", ErrStorageFailure, err)
	}

	roomID := sess.id
	notice := models.NewErrorEvent(&roomID, ErrorCode(ErrNotFound), "room deleted")
	for _, connID := range sess.memberIDs() {
		if conn, ok := s.registry.Conn(connID); ok {
			_ = conn.Deliver(notice)
		}
		s.registry.Leave(connID, roomID)
	}
	observability.SetActiveRooms(s.registry.ActiveRooms())
	s.log.Info("room deleted", "room_id", roomID, "user_id", identity.ID)
	s.emitAudit(ctx, "INFO", "room deleted", identity)
	return nil
}

func (s *Service) lookupRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Room{}, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return models.Room{}, fmt.Errorf("%w: room lookup: %v", ErrStorageFailure, err)
	}
	return room, nil
}

func (s *Service) authorize(ctx context.Context, identity models.Identity, roomID uuid.UUID) (models.Room, error) {
	room, err := s.lookupRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if !CanAccess(identity, room) {
		return models.Room{}, fmt.Errorf("%w: user %s may not access room %s", ErrUnauthorized, identity.ID, roomID)
	}
	return room, nil
}

func (s *Service) history(ctx context.Context, roomID uuid.UUID) ([]models.ResolvedMessage, error) {
	msgs, err := s.store.Range(ctx, roomID)
	if err != nil {
		s.log.Error("history fetch failed", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("%w: range: %v", ErrStorageFailure, err)
	}
	return s.resolveAuthors(ctx, msgs)
}

// resolveAuthors joins messages with the current state of their authors.
// Authors that no longer exist are rendered as DeletedAuthor.
func (s *Service) resolveAuthors(ctx context.Context, msgs []models.Message) ([]models.ResolvedMessage, error) {
	if len(msgs) == 0 {
		return []models.ResolvedMessage{}, nil
	}
	ids := lo.Uniq(lo.Map(msgs, func(m models.Message, _ int) uuid.UUID { return m.AuthorID }))
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", ErrStorageFailure, err)
	}
	byID := lo.KeyBy(users, func(u models.User) uuid.UUID { return u.ID })
	return lo.Map(msgs, func(m models.Message, _ int) models.ResolvedMessage {
		if u, ok := byID[m.AuthorID]; ok {
			return m.Resolve(u.Author())
		}
		return m.Resolve(models.DeletedAuthor)
	}), nil
}

// currentAuthor resolves the sender from current user state, falling back
// to the connection's identity snapshot when the lookup fails.
func (s *Service) currentAuthor(ctx context.Context, identity models.Identity) models.Author {
	users, err := s.users.GetUsers(ctx, []uuid.UUID{identity.ID})
	if err != nil {
		s.log.Warn("author lookup failed, using identity snapshot", "user_id", identity.ID, "error", err)
		return identity.Author()
	}
	if len(users) == 0 {
		return models.DeletedAuthor
	}
	return users[0].Author()
}

// dropFaulted closes connections that could not take an event. The rest of
// the room is unaffected.
func (s *Service) dropFaulted(conns []Conn, cause error) {
	for _, c := range conns {
		observability.IncDeliveryFault()
		s.log.Warn("dropping connection after delivery fault", "conn_id", c.ID(), "error", cause)
		s.registry.Disconnect(c.ID())
		_ = c.Close()
	}
}

func (s *Service) emitAudit(ctx context.Context, level, text string, identity models.Identity) {
	if s.audit == nil {
		return
	}
	userID := identity.ID.String()
	s.audit.Emit(ctx, level, text, observability.RequestIDFromContext(ctx), &userID)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
