package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/availability"
	"staybook/models"
	"staybook/rdx"
)

func testRouter(svc *Service) *httprouter.Router {
	h := NewHandlers(svc)
	router := httprouter.New()
	router.GET("/api/reservations", h.ListReservations)
	router.POST("/api/reservations", h.CreateReservation)
	router.POST("/api/reservations/validate", h.Validate)
	router.GET("/api/availability/arrivals", h.Arrivals)
	router.GET("/api/calendar/:year/:month", h.Calendar)
	router.GET("/api/admin/reservations/:id", h.GetReservation)
	router.POST("/api/admin/reservations", h.CreateAdminReservation)
	router.DELETE("/api/admin/reservations/:id", h.CancelReservation)
	router.POST("/api/admin/blocks", h.CreateBlock)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateReservationHandler(t *testing.T) {
	events := &eventLog{}
	router := testRouter(NewService(newMemRepo(august()...), nil, events, strictOpts()))

	rec := do(t, router, http.MethodPost, "/api/reservations", Request{
		StartDate: "2025-08-04", EndDate: "2025-08-09", Source: models.SourceChannelA,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res models.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.SourceDirect, res.Source, "public bookings are always direct")
	assert.Equal(t, "2025-08-09", res.EndDate)

	rec = do(t, router, http.MethodPost, "/api/reservations", Request{StartDate: "2025-08-09", EndDate: "2025-08-10"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"valid":false,"reason":"`+availability.ReasonArrivalReserved+`"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/reservations", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminReservationKeepsSource(t *testing.T) {
	router := testRouter(NewService(newMemRepo(), nil, nil, strictOpts()))

	rec := do(t, router, http.MethodPost, "/api/admin/reservations", Request{
		StartDate: "2025-08-04", EndDate: "2025-08-09", Source: models.SourceChannelB,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res models.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.SourceChannelB, res.Source)

	rec = do(t, router, http.MethodGet, "/api/admin/reservations/"+res.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/admin/reservations", Request{
		StartDate: "2025-09-04", EndDate: "2025-09-09", Source: "carrier-pigeon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateHandlerAlwaysAnswers(t *testing.T) {
	router := testRouter(NewService(newMemRepo(august()...), nil, nil, strictOpts()))

	cases := []struct {
		body rangeRequest
		want availability.Result
	}{
		{rangeRequest{StartDate: "2025-08-04", EndDate: "2025-08-09"}, availability.Result{Valid: true}},
		{rangeRequest{StartDate: "2025-08-02", EndDate: "2025-08-06"}, availability.Result{Reason: availability.ReasonNightsOccupied}},
		{rangeRequest{StartDate: "2025-08-06", EndDate: "2025-08-11"}, availability.Result{Reason: availability.ReasonCrossesArrival}},
		{rangeRequest{}, availability.Result{Reason: availability.ReasonArrivalRequired}},
	}
	for _, tc := range cases {
		rec := do(t, router, http.MethodPost, "/api/reservations/validate", tc.body)
		require.Equal(t, http.StatusOK, rec.Code)
		var got availability.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, tc.want, got, tc.body)
	}
}

func TestArrivalsAndCalendarHandlers(t *testing.T) {
	router := testRouter(NewService(newMemRepo(august()...), nil, nil, strictOpts()))

	rec := do(t, router, http.MethodGet, "/api/availability/arrivals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"arrivals":["2025-08-01","2025-08-09"],"maxStayDays":15}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/calendar/2025/8", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cal struct {
		Year  int                     `json:"year"`
		Month int                     `json:"month"`
		Days  []availability.DayState `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cal))
	require.Len(t, cal.Days, 31)
	assert.Equal(t, availability.KindCheckInHalf, cal.Days[0].Kind)
	assert.Equal(t, availability.KindCheckOutHalf, cal.Days[3].Kind)
	assert.Equal(t, availability.KindCheckOutHalf, cal.Days[12].Kind)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/calendar/2025/13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/calendar/x/8", nil).Code)
}

func TestCancelAndBlockHandlers(t *testing.T) {
	events := &eventLog{}
	router := testRouter(NewService(newMemRepo(august()...), nil, events, strictOpts()))

	rec := do(t, router, http.MethodDelete, "/api/admin/reservations/r2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, events.types(), models.EventBookingCancelled)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/admin/reservations/r2", nil).Code)

	rec = do(t, router, http.MethodPost, "/api/admin/blocks", rangeRequest{StartDate: "2025-08-09", EndDate: "2025-08-12", Note: "painting"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res models.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.SourceBlocked, res.Source)
	assert.Equal(t, "painting", res.GuestLabel)

	rec = do(t, router, http.MethodGet, "/api/reservations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestBusyCalendarIsConflict(t *testing.T) {
	lock := &MockLocker{}
	lock.On("Acquire", mock.Anything).Return(nil, rdx.ErrLockHeld)
	router := testRouter(NewService(newMemRepo(), lock, nil, strictOpts()))

	rec := do(t, router, http.MethodPost, "/api/reservations", Request{StartDate: "2025-08-04", EndDate: "2025-08-06"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "busy")
}

func TestListEmptyIsArray(t *testing.T) {
	router := testRouter(NewService(newMemRepo(), nil, nil, strictOpts()))
	rec := do(t, router, http.MethodGet, "/api/reservations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
