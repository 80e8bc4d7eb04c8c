package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		Booking Booking `json:"booking"`
	} `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64); err == nil {
			c.Set("user_id", id)
		}
		c.Next()
	})
	h.RegisterRoutes(api)
	return r
}

func call(t *testing.T, r *gin.Engine, userID int64, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestHandler_RequestAndApprove(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(NewHandler(f.svc))
	f.notifier.On("NotifyBookingRequestCreated", mock.Anything, hostID, mock.Anything).Return(nil).Once()
	f.notifier.On("NotifyBookingConfirmed", mock.Anything, guestID, mock.Anything).Return(nil).Once()

	code, env := call(t, r, guestID, http.MethodPost, "/api/v1/bookings", map[string]any{
		"property_id": f.loft.ID,
		"check_in":    "2025-06-01",
		"check_out":   "2025-06-03",
		"guests":      2,
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)
	id := env.Data.Booking.ID
	assert.Equal(t, 200.0, env.Data.Booking.TotalPrice)

	path := "/api/v1/bookings/" + strconv.FormatInt(id, 10)

	code, env = call(t, r, guestID, http.MethodPost, path+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, env = call(t, r, hostID, http.MethodPost, path+"/approve", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusConfirmed, env.Data.Booking.Status)

	code, env = call(t, r, hostID, http.MethodPost, path+"/decline", map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", env.Error.Code)

	code, env = call(t, r, guestID, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, env.Data.Booking.ID)

	f.notifier.AssertExpectations(t)
}

func TestHandler_Validation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(NewHandler(f.svc))

	code, env := call(t, r, 0, http.MethodPost, "/api/v1/bookings", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, env = call(t, r, guestID, http.MethodPost, "/api/v1/bookings", map[string]any{
		"property_id": f.loft.ID,
		"check_in":    "tomorrow",
		"check_out":   "2025-06-03",
		"guests":      1,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = call(t, r, hostID, http.MethodPost, "/api/v1/bookings/1/decline", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = call(t, r, hostID, http.MethodPost, "/api/v1/bookings/abc/approve", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	code, env = call(t, r, hostID, http.MethodGet, "/api/v1/bookings/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
