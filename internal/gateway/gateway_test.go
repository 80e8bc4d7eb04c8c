package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
	"staybook/internal/notify"
	"staybook/internal/pkg/jwt"
	"staybook/internal/pkg/toast"
	"staybook/internal/realtime"
)

const hostID int64 = 5

type MockNotificationSource struct {
	mock.Mock
}

func (m *MockNotificationSource) List(ctx context.Context, userID int64, filter notification.Filter, limit, offset int) (*notification.Page, error) {
	args := m.Called(ctx, userID, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Page), args.Error(1)
}

func (m *MockNotificationSource) MarkAsRead(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockNotificationSource) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockBookingActions struct {
	mock.Mock
}

func (m *MockBookingActions) ApproveBooking(ctx context.Context, hostID, bookingID int64, reason string) error {
	args := m.Called(ctx, hostID, bookingID, reason)
	return args.Error(0)
}

func (m *MockBookingActions) DeclineBooking(ctx context.Context, hostID, bookingID int64, reason string) error {
	args := m.Called(ctx, hostID, bookingID, reason)
	return args.Error(0)
}

type stubSearcher struct {
	listings []property.Listing
}

func (s *stubSearcher) Search(ctx context.Context, params property.SearchParams) (*property.SearchResult, error) {
	return &property.SearchResult{
		Data:           s.listings,
		Pagination:     property.NewPagination(1, params.PageSize, int64(len(s.listings))),
		FiltersApplied: params.Filters,
		Sort:           params.Sort,
	}, nil
}

type stubLikes struct{}

func (stubLikes) Like(ctx context.Context, userID, propertyID int64) error   { return nil }
func (stubLikes) Unlike(ctx context.Context, userID, propertyID int64) error { return nil }

type stubViews struct{}

func (stubViews) RecordView(ctx context.Context, userID, propertyID int64) (bool, error) {
	return true, nil
}

type fixture struct {
	broker   *realtime.MemoryBroker
	tokens   *jwt.Service
	source   *MockNotificationSource
	bookings *MockBookingActions
	handler  *Handler
	server   *httptest.Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		broker:   realtime.NewMemoryBroker(),
		tokens:   jwt.New("test-secret", time.Hour),
		source:   new(MockNotificationSource),
		bookings: new(MockBookingActions),
	}
	manager := notify.NewManager(f.broker.NewClient())
	t.Cleanup(manager.Close)

	searcher := &stubSearcher{listings: []property.Listing{
		{ID: 1, Title: "Loft", PricePerNight: 90},
		{ID: 2, Title: "Villa", PricePerNight: 250},
	}}
	f.handler = NewHandler(f.tokens, Deps{
		Subscriber: manager,
		Source:     f.source,
		Bookings:   f.bookings,
		Searcher:   searcher,
		Likes:      stubLikes{},
		Views:      stubViews{},
	}, opts)

	r := gin.New()
	f.handler.RegisterRoutes(r)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func (f *fixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	token, err := f.tokens.GenerateToken(userID, role)
	require.NoError(t, err)
	return token
}

func send(t *testing.T, conn *websocket.Conn, frame ClientFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// readUntil skips frames until one matches.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerFrame) bool) ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f ServerFrame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func ofType(typ string) func(ServerFrame) bool {
	return func(f ServerFrame) bool { return f.Type == typ }
}

func errorFor(command string) func(ServerFrame) bool {
	return func(f ServerFrame) bool { return f.Type == FrameError && f.Command == command }
}

func settledNotifications(f ServerFrame) bool {
	return f.Type == FrameNotificationsState && !f.Notifications.Loading
}

func TestGateway_PingAndProtocolErrors(t *testing.T) {
	f := newFixture(t, Options{AllowAnyOrigin: true})
	conn := f.dial(t, "")

	send(t, conn, ClientFrame{Type: CmdPing})
	readUntil(t, conn, ofType(FramePong))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	got := readUntil(t, conn, ofType(FrameError))
	assert.Equal(t, "INVALID_FRAME", got.ErrorCode)

	send(t, conn, ClientFrame{Type: "teleport"})
	got = readUntil(t, conn, errorFor("teleport"))
	assert.Equal(t, "UNKNOWN_TYPE", got.ErrorCode)

	big := `{"type":"ping","pad":"` + strings.Repeat("x", maxFrameSize) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))
	got = readUntil(t, conn, ofType(FrameError))
	assert.Equal(t, "FRAME_TOO_LARGE", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdNotificationsFetch})
	got = readUntil(t, conn, errorFor(CmdNotificationsFetch))
	assert.Equal(t, "NOT_AUTHENTICATED", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdPing})
	readUntil(t, conn, ofType(FramePong))
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	f := newFixture(t, Options{AllowAnyOrigin: true})

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_OriginCheck(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"http://app.test"}})

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), http.Header{"Origin": {"http://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(""), http.Header{"Origin": {"http://app.test"}})
	require.NoError(t, err)
	conn.Close()
}

func TestGateway_BookingRequestToastAndAccept(t *testing.T) {
	f := newFixture(t, Options{AllowAnyOrigin: true})
	f.source.On("List", mock.Anything, hostID, notification.FilterAll, 20, 0).Return(&notification.Page{}, nil)

	conn := f.dial(t, f.token(t, hostID, "host"))
	readUntil(t, conn, settledNotifications)

	bookingID := int64(42)
	require.NoError(t, f.broker.Publish(context.Background(), "notifications", realtime.EventInsert, notification.Notification{
		ID:          11,
		UserID:      hostID,
		Role:        notification.RoleHost,
		Type:        notification.TypeBookingRequestCreated,
		RelatedType: notification.RelatedBooking,
		RelatedID:   &bookingID,
		Title:       "New booking request",
		Message:     "Ana wants to stay",
	}))

	got := readUntil(t, conn, ofType(FrameToast))
	require.NotNil(t, got.Toast)
	assert.Equal(t, toast.LevelAction, got.Toast.Level)
	assert.Equal(t, int64(11), got.Toast.NotificationID)
	require.Len(t, got.Toast.Actions, 3)
	assert.Equal(t, notify.ActionAccept, got.Toast.Actions[0].ID)

	f.bookings.On("ApproveBooking", mock.Anything, hostID, bookingID, notify.QuickApproveReason).Return(nil)
	f.source.On("MarkAsRead", mock.Anything, int64(11), hostID).Return(nil)

	send(t, conn, ClientFrame{Type: CmdToastAction, NotificationID: 11, Action: notify.ActionAccept})
	got = readUntil(t, conn, ofType(FrameToast))
	assert.Equal(t, toast.LevelSuccess, got.Toast.Level)
	assert.Equal(t, "Booking accepted", got.Toast.Message)

	got = readUntil(t, conn, func(f ServerFrame) bool {
		return f.Type == FrameNotificationsState && len(f.Notifications.Notifications) == 1 && f.Notifications.Notifications[0].IsRead
	})
	assert.Equal(t, 0, got.Notifications.UnreadCount)

	f.bookings.AssertExpectations(t)
	f.source.AssertExpectations(t)
}

func TestGateway_AuthFrameAndLogout(t *testing.T) {
	f := newFixture(t, Options{AllowAnyOrigin: true})
	f.source.On("List", mock.Anything, hostID, notification.FilterAll, 20, 0).Return(&notification.Page{
		Items: []notification.Notification{{ID: 3, UserID: hostID, Title: "Welcome"}},
	}, nil)

	conn := f.dial(t, "")

	send(t, conn, ClientFrame{Type: CmdAuth, Token: "garbage"})
	got := readUntil(t, conn, errorFor(CmdAuth))
	assert.Equal(t, "INVALID_TOKEN", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdAuth})
	got = readUntil(t, conn, errorFor(CmdAuth))
	assert.Equal(t, "VALIDATION_ERROR", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdAuth, Token: f.token(t, hostID, "host")})
	got = readUntil(t, conn, settledNotifications)
	require.Len(t, got.Notifications.Notifications, 1)
	assert.Equal(t, 1, got.Notifications.UnreadCount)
	assert.Equal(t, 1, f.handler.Sessions())

	send(t, conn, ClientFrame{Type: CmdNotificationsFilter, Filter: notification.FilterRead})
	got = readUntil(t, conn, ofType(FrameNotificationsState))
	assert.Equal(t, notification.FilterRead, got.Notifications.Filter)

	send(t, conn, ClientFrame{Type: CmdNotificationsFilter, Filter: "starred"})
	got = readUntil(t, conn, errorFor(CmdNotificationsFilter))
	assert.Equal(t, "VALIDATION_ERROR", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdLogout})
	got = readUntil(t, conn, ofType(FrameNotificationsState))
	assert.Empty(t, got.Notifications.Notifications)

	send(t, conn, ClientFrame{Type: CmdNotificationsReadAll})
	got = readUntil(t, conn, errorFor(CmdNotificationsReadAll))
	assert.Equal(t, "NOT_AUTHENTICATED", got.ErrorCode)

	conn.Close()
	assert.Eventually(t, func() bool { return f.handler.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_SearchCommands(t *testing.T) {
	f := newFixture(t, Options{AllowAnyOrigin: true})
	conn := f.dial(t, "")

	priceMax := 300.0
	send(t, conn, ClientFrame{Type: CmdSearchApply, Filters: &property.SearchFilters{PriceMax: &priceMax}})
	got := readUntil(t, conn, func(f ServerFrame) bool {
		return f.Type == FrameFeedState && !f.Feed.Loading && len(f.Feed.Properties) == 2
	})
	require.NotNil(t, got.Feed.Filters.PriceMax)
	assert.Equal(t, 300.0, *got.Feed.Filters.PriceMax)
	assert.Equal(t, 1, got.Feed.ActiveFiltersCount)

	send(t, conn, ClientFrame{Type: CmdSearchSort, Sort: "cheapest"})
	got = readUntil(t, conn, errorFor(CmdSearchSort))
	assert.Equal(t, "VALIDATION_ERROR", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdPropertyLike, PropertyID: 1})
	got = readUntil(t, conn, ofType(FrameToast))
	assert.Equal(t, toast.LevelInfo, got.Toast.Level)
	got = readUntil(t, conn, errorFor(CmdPropertyLike))
	assert.Equal(t, "NOT_AUTHENTICATED", got.ErrorCode)

	send(t, conn, ClientFrame{Type: CmdPropertyView})
	got = readUntil(t, conn, errorFor(CmdPropertyView))
	assert.Equal(t, "VALIDATION_ERROR", got.ErrorCode)
}

func TestGateway_RateLimit(t *testing.T) {
	f := newFixture(t, Options{AllowAnyOrigin: true, RatePerSecond: 1, Burst: 2})
	conn := f.dial(t, "")

	for i := 0; i < 4; i++ {
		send(t, conn, ClientFrame{Type: CmdPing})
	}
	got := readUntil(t, conn, ofType(FrameError))
	assert.Equal(t, "RATE_LIMITED", got.ErrorCode)
}
