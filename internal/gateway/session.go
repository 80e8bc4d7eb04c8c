package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
	"staybook/internal/feed"
	"staybook/internal/middleware"
	"staybook/internal/notify"
	"staybook/internal/pkg/toast"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxMsgSize   = 512 * 1024
	maxFrameSize = 16 * 1024
	sendBuffer   = 256
)

var (
	errMissingToken = errors.New("token is required")
	errInvalidToken = errors.New("invalid or expired token")
	errMissingID    = errors.New("id is required")
)

// session is one websocket connection with its own notification store,
// provider and feed.
type session struct {
	conn    *websocket.Conn
	tokens  middleware.TokenValidator
	limiter *rate.Limiter
	send    chan []byte
	done    chan struct{}
	once    sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	notifications *notification.Store
	provider      *notify.Provider
	feed          *feed.Store
	navigator     *Navigator

	mu   sync.RWMutex
	auth notify.AuthState
}

func newSession(conn *websocket.Conn, tokens middleware.TokenValidator, deps Deps, limiter *rate.Limiter) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:          conn,
		tokens:        tokens,
		limiter:       limiter,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		notifications: notification.NewStore(),
	}

	toaster := toast.Func(func(t toast.Toast) { s.emit(NewToastFrame(t)) })
	s.navigator = NewNavigator(func(route string) { s.emit(NewNavigateFrame(route)) })
	s.provider = notify.NewProvider(
		deps.Subscriber,
		s.notifications,
		deps.Source,
		toaster,
		deps.Bookings,
		s.navigator,
		notify.WithStoreListener(func(state notification.State) {
			s.emit(NewNotificationsStateFrame(state))
		}),
	)
	s.feed = feed.NewStore(deps.Searcher, deps.Likes, deps.Views, toaster,
		feed.WithListener(func(state feed.State) {
			s.emit(NewFeedStateFrame(state))
		}),
	)
	return s
}

// run blocks until the connection closes, then releases everything the
// session holds.
func (s *session) run(userID int64, role string) {
	go s.writePump()

	if userID > 0 {
		if err := s.authenticate(userID, role); err != nil {
			s.emitError(CmdAuth, err)
		}
	}

	s.readPump()

	s.cancel()
	s.wg.Wait()
	s.provider.Close()
	s.once.Do(func() { close(s.done) })
}

func (s *session) readPump() {
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMsgSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("gateway_read_error user_id=%d error=%v", s.userID(), err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleMessage(msg)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// emit queues a frame for the write pump. Frames for a slow client are
// dropped.
func (s *session) emit(frame *ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("gateway_marshal_error type=%s error=%v", frame.Type, err)
		return
	}
	select {
	case <-s.done:
	case s.send <- data:
	default:
		log.Printf("gateway_frame_dropped user_id=%d type=%s", s.userID(), frame.Type)
	}
}

func (s *session) emitError(command string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	code, message := errorCode(err)
	s.emit(NewErrorFrame(command, code, message))
}

func (s *session) handleMessage(msg []byte) {
	if len(msg) > maxFrameSize {
		s.emit(NewErrorFrame("", "FRAME_TOO_LARGE", "Frame exceeds the size limit"))
		return
	}
	if !s.limiter.Allow() {
		s.emit(NewErrorFrame("", "RATE_LIMITED", "Too many commands, slow down"))
		return
	}

	var f ClientFrame
	if err := json.Unmarshal(msg, &f); err != nil || f.Type == "" {
		s.emit(NewErrorFrame("", "INVALID_FRAME", "Frame must be a JSON object with a type"))
		return
	}

	if err := s.dispatch(f); err != nil {
		s.emitError(f.Type, err)
	}
}

func (s *session) dispatch(f ClientFrame) error {
	ctx := s.ctx
	switch f.Type {
	case CmdPing:
		s.emit(NewPongFrame())
		return nil
	case CmdAuth:
		return s.handleAuth(f.Token)
	case CmdLogout:
		return s.logout()

	case CmdNotificationsFetch:
		if f.More {
			return s.provider.LoadMore(ctx)
		}
		return s.provider.Refresh(ctx)
	case CmdNotificationsRead:
		if f.NotificationID <= 0 {
			return errMissingID
		}
		return s.provider.MarkAsRead(ctx, f.NotificationID)
	case CmdNotificationsReadAll:
		return s.provider.MarkAllAsRead(ctx)
	case CmdNotificationsFilter:
		if err := s.notifications.SetFilter(f.Filter); err != nil {
			return err
		}
		s.emit(NewNotificationsStateFrame(s.notifications.Snapshot()))
		return nil
	case CmdToastAction:
		if f.NotificationID <= 0 {
			return errMissingID
		}
		return s.provider.HandleAction(ctx, f.NotificationID, f.Action)

	case CmdSearchApply:
		partial := property.SearchFilters{}
		if f.Filters != nil {
			partial = *f.Filters
		}
		s.async(f.Type, func(ctx context.Context) error { return s.feed.ApplyFilters(ctx, partial) })
		return nil
	case CmdSearchClear:
		s.async(f.Type, s.feed.ClearFilters)
		return nil
	case CmdSearchSort:
		if !f.Sort.Valid() {
			return property.ErrInvalidSort
		}
		sort := f.Sort
		s.async(f.Type, func(ctx context.Context) error { return s.feed.SetSort(ctx, sort) })
		return nil
	case CmdSearchMore:
		s.async(f.Type, s.feed.LoadMore)
		return nil
	case CmdPropertyLike:
		if f.PropertyID <= 0 {
			return errMissingID
		}
		return s.feed.HandleLikeProperty(ctx, f.PropertyID)
	case CmdPropertyView:
		if f.PropertyID <= 0 {
			return errMissingID
		}
		s.feed.HandleViewProperty(ctx, f.PropertyID)
		return nil
	}

	s.emit(NewErrorFrame(f.Type, "UNKNOWN_TYPE", "Unknown command type"))
	return nil
}

// async runs searches off the read loop so a slow search never blocks the
// next command. The feed discards responses that are no longer current.
func (s *session) async(command string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil {
			s.emitError(command, err)
		}
	}()
}

func (s *session) handleAuth(token string) error {
	if token == "" {
		return errMissingToken
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return errInvalidToken
	}
	return s.authenticate(claims.UserID, claims.Role)
}

// authenticate switches the session to userID. A realtime subscribe failure
// is returned after the rest of the session has switched; the next auth
// frame retries it.
func (s *session) authenticate(userID int64, role string) error {
	state := notify.AuthState{Authenticated: true, UserID: userID, Role: role}
	subErr := s.provider.OnAuthChange(s.ctx, state)

	s.mu.Lock()
	s.auth = state
	s.mu.Unlock()
	s.feed.SetViewer(userID)
	s.navigator.SetAuthenticated(true)

	if err := s.provider.Refresh(s.ctx); err != nil {
		log.Printf("gateway_refresh_error user_id=%d error=%v", userID, err)
	}
	return subErr
}

func (s *session) logout() error {
	if err := s.provider.OnAuthChange(s.ctx, notify.AuthState{}); err != nil {
		return err
	}
	s.mu.Lock()
	s.auth = notify.AuthState{}
	s.mu.Unlock()
	s.feed.SetViewer(0)
	s.navigator.SetAuthenticated(false)
	return nil
}

func (s *session) userID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.UserID
}

func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, errMissingToken), errors.Is(err, errMissingID):
		return "VALIDATION_ERROR", err.Error()
	case errors.Is(err, errInvalidToken):
		return "INVALID_TOKEN", "Invalid or expired token"
	case errors.Is(err, notify.ErrNotAuthenticated), errors.Is(err, feed.ErrNotAuthenticated):
		return "NOT_AUTHENTICATED", "Sign in required"
	case errors.Is(err, notify.ErrSubscribeFailed):
		return "REALTIME_UNAVAILABLE", "Live notifications are unavailable"
	case errors.Is(err, notify.ErrUnknownNotification):
		return "NOTIFICATION_NOT_FOUND", "Notification not found"
	case errors.Is(err, notify.ErrUnknownAction), errors.Is(err, notify.ErrActionNotApplicable):
		return "INVALID_ACTION", err.Error()
	case errors.Is(err, notification.ErrInvalidFilter),
		errors.Is(err, property.ErrInvalidFilters),
		errors.Is(err, property.ErrInvalidSort),
		errors.Is(err, property.ErrInvalidPage):
		return "VALIDATION_ERROR", err.Error()
	case errors.Is(err, feed.ErrUnknownProperty), errors.Is(err, property.ErrNotFound):
		return "NOT_FOUND", "Property not found"
	default:
		return "COMMAND_FAILED", "Request failed"
	}
}
