package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"sentra_backend/internal/story/service"
	"sentra_backend/internal/story/transport"
	"sentra_backend/platform/httpkit"
	"sentra_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles the story hooks and the story read API.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new story handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterHookRoutes registers the CRM change-notification hooks.
func (h *Handler) RegisterHookRoutes(rg *gin.RouterGroup) {
	rg.POST("/trips", h.TripChanged)
	rg.POST("/itineraries", h.ItineraryChanged)
	rg.POST("/communications", h.CommunicationCreated)
	rg.POST("/trips/:trip/refresh", h.RefreshTrip)
}

// RegisterRoutes registers the story read routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:contact", h.GetStory)
	rg.GET("/:contact/events", h.ListEvents)
}

// bind decodes and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return false
	}
	return true
}

func hookResponse(c *gin.Context, queued bool) {
	if queued {
		httpkit.Accepted(c, transport.HookResponse{Status: transport.HookStatusQueued})
		return
	}
	httpkit.OK(c, transport.HookResponse{Status: transport.HookStatusProcessed})
}

// TripChanged handles POST /api/v1/hooks/trips
func (h *Handler) TripChanged(c *gin.Context) {
	var req transport.TripRequest
	if !h.bind(c, &req) {
		return
	}
	trip, err := req.ToDomain()
	if httpkit.HandleError(c, err) {
		return
	}

	queued, err := h.svc.SubmitTrip(c.Request.Context(), trip)
	if httpkit.HandleError(c, err) {
		return
	}
	hookResponse(c, queued)
}

// ItineraryChanged handles POST /api/v1/hooks/itineraries
func (h *Handler) ItineraryChanged(c *gin.Context) {
	var req transport.ItineraryRequest
	if !h.bind(c, &req) {
		return
	}
	itinerary, err := req.ToDomain()
	if httpkit.HandleError(c, err) {
		return
	}

	queued, err := h.svc.SubmitItinerary(c.Request.Context(), itinerary)
	if httpkit.HandleError(c, err) {
		return
	}
	hookResponse(c, queued)
}

// CommunicationCreated handles POST /api/v1/hooks/communications
func (h *Handler) CommunicationCreated(c *gin.Context) {
	var req transport.CommunicationRequest
	if !h.bind(c, &req) {
		return
	}
	comm, err := req.ToDomain(time.Now().UTC())
	if httpkit.HandleError(c, err) {
		return
	}

	queued, err := h.svc.SubmitCommunication(c.Request.Context(), comm)
	if httpkit.HandleError(c, err) {
		return
	}
	hookResponse(c, queued)
}

// GetStory handles GET /api/v1/stories/:contact
func (h *Handler) GetStory(c *gin.Context) {
	contact := strings.TrimSpace(c.Param("contact"))
	if contact == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.GetStory(c.Request.Context(), contact)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListEvents handles GET /api/v1/stories/:contact/events
func (h *Handler) ListEvents(c *gin.Context) {
	contact := strings.TrimSpace(c.Param("contact"))
	if contact == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		limit = parsed
	}

	result, err := h.svc.ListEvents(c.Request.Context(), contact, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RefreshTrip handles POST /api/v1/hooks/trips/:trip/refresh
func (h *Handler) RefreshTrip(c *gin.Context) {
	if httpkit.HandleError(c, h.svc.RefreshTrip(c.Request.Context(), c.Param("trip"))) {
		return
	}
	httpkit.OK(c, transport.HookResponse{Status: transport.HookStatusProcessed})
}
