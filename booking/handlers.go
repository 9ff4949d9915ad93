package booking

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"staybook/models"
	"staybook/rdx"
	"staybook/utils"
)

// Handlers exposes the Service over HTTP.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

type rangeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Note      string `json:"note,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	var rej *Rejection
	switch {
	case errors.As(err, &rej):
		utils.RespondWithJSON(w, http.StatusConflict, utils.M{"valid": false, "reason": rej.Reason})
	case errors.Is(err, rdx.ErrLockHeld):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[booking] internal error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if list == nil {
		list = []models.Reservation{}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.svc.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// CreateReservation books a stay from the public site; the source is
// always direct.
func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req Request
	if !decode(w, r, &req) {
		return
	}
	req.Source = models.SourceDirect
	h.create(w, r, req)
}

// CreateAdminReservation lets staff enter stays from any channel.
func (h *Handlers) CreateAdminReservation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req Request
	if !decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = models.SourceAdminManual
	}
	h.create(w, r, req)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request, req Request) {
	res, err := h.svc.Create(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, res)
}

func (h *Handlers) CreateBlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req rangeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Block(r.Context(), req.StartDate, req.EndDate, req.Note)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, res)
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.svc.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// Validate returns the verdict as data; a rejected range is still a 200.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req rangeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Check(r.Context(), req.StartDate, req.EndDate)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

func (h *Handlers) Arrivals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	days, err := h.svc.Arrivals(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"arrivals":    days,
		"maxStayDays": h.svc.Options().MaxStayDays,
	})
}

func (h *Handlers) Calendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	year, err := strconv.Atoi(ps.ByName("year"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := strconv.Atoi(ps.ByName("month"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid month")
		return
	}
	days, err := h.svc.Month(r.Context(), year, time.Month(month))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"year": year, "month": month, "days": days})
}
