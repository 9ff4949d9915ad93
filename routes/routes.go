package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"staybook/booking"
	"staybook/middleware"
	"staybook/ratelim"
	"staybook/utils"
	"staybook/websock"
)

func AddHealthRoutes(router *httprouter.Router, hub *websock.Hub) {
	router.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"status": "ok",
			"live": utils.M{
				"public": hub.Count(websock.AudiencePublic),
				"admin":  hub.Count(websock.AudienceAdmin),
			},
		})
	})
}

func AddBookingRoutes(router *httprouter.Router, h *booking.Handlers, auth *middleware.Auth, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/reservations", rateLimiter.Limit(h.CreateReservation))
	router.POST("/api/reservations/validate", rateLimiter.Limit(h.Validate))
	router.GET("/api/availability/arrivals", h.Arrivals)
	router.GET("/api/calendar/:year/:month", h.Calendar)

	router.GET("/api/reservations", auth.Authenticate(h.ListReservations))
	router.GET("/api/admin/reservations/:id", auth.Authenticate(h.GetReservation))
	router.POST("/api/admin/reservations", auth.Authenticate(h.CreateAdminReservation))
	router.DELETE("/api/admin/reservations/:id", auth.Authenticate(h.CancelReservation))
	router.POST("/api/admin/blocks", auth.Authenticate(h.CreateBlock))
}

func AddLiveRoutes(router *httprouter.Router, hub *websock.Hub, auth *middleware.Auth) {
	router.GET("/ws", hub.Handler(websock.AudiencePublic))
	router.GET("/ws/admin", auth.AuthenticateQuery(hub.Handler(websock.AudienceAdmin)))
}
