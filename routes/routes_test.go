package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/availability"
	"staybook/booking"
	"staybook/db"
	"staybook/middleware"
	"staybook/models"
	"staybook/mq"
	"staybook/ratelim"
	"staybook/websock"
)

type staticRepo struct {
	list []models.Reservation
}

func (r *staticRepo) ListActive(context.Context) ([]models.Reservation, error) { return r.list, nil }
func (r *staticRepo) Get(context.Context, string) (models.Reservation, error) {
	return models.Reservation{}, db.ErrNoReservation
}
func (r *staticRepo) Insert(_ context.Context, res models.Reservation) error {
	r.list = append(r.list, res)
	return nil
}
func (r *staticRepo) Cancel(context.Context, string) (models.Reservation, error) {
	return models.Reservation{}, db.ErrNoReservation
}

func newServer(t *testing.T) (*httptest.Server, *middleware.Auth) {
	t.Helper()
	hub := websock.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	svc := booking.NewService(&staticRepo{}, nil, mq.LocalPublisher{Sink: hub}, availability.Options{Strict: true})
	auth := middleware.NewAuth("test-secret")

	router := httprouter.New()
	AddHealthRoutes(router, hub)
	AddBookingRoutes(router, booking.NewHandlers(svc), auth, ratelim.NewRateLimiter(100, 100))
	AddLiveRoutes(router, hub, auth)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, auth
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	srv, auth := newServer(t)

	resp, err := http.Get(srv.URL + "/api/reservations")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.Issue("staff-1", []string{"staff"}, time.Minute)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/reservations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/availability/arrivals")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "arrivals are public")
}

func TestBookingReachesLiveViewers(t *testing.T) {
	srv, auth := newServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/admin", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.Issue("staff-1", []string{"admin"}, time.Minute)
	require.NoError(t, err)
	admin, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/admin?token="+token, nil)
	require.NoError(t, err)
	defer admin.Close()
	public, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws", nil)
	require.NoError(t, err)
	defer public.Close()

	read := func(c *websocket.Conn) models.Message {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg models.Message
		require.NoError(t, c.ReadJSON(&msg))
		return msg
	}
	require.Equal(t, models.EventConnected, read(admin).Type)
	require.Equal(t, models.EventConnected, read(public).Type)

	body := `{"startDate":"2025-08-04","endDate":"2025-08-09"}`
	resp, err = http.Post(srv.URL+"/api/reservations", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, models.EventNewBooking, read(admin).Type)
	assert.Equal(t, models.EventCalendarUpdate, read(admin).Type)
	assert.Equal(t, models.EventAnalyticsUpdate, read(admin).Type)

	// the public widget only hears about the calendar
	got := read(public)
	assert.Equal(t, models.EventCalendarUpdate, got.Type)
	var upd models.CalendarUpdate
	require.NoError(t, json.Unmarshal(got.Data, &upd))
	assert.Equal(t, models.CalendarUpdate{Year: 2025, Month: 8}, upd)
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
