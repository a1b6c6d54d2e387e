package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sunrise-clinic/booking-api/internal/models"
	"github.com/sunrise-clinic/booking-api/internal/service"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/response"
)

// AvailabilityHandler exposes the slot availability lookup.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler creates a new handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Get godoc
// @Summary Slot availability for a technician day
// @Description Returns the annotated slot grid for a technician, service and location on a date. Anonymous callers are treated as customers.
// @Tags Schedule
// @Produce json
// @Param technician_id query string true "Technician ID"
// @Param service_id query string true "Service ID"
// @Param location_id query string true "Location ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	var req service.AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability query"))
		return
	}

	req.RequesterRole = models.RoleCustomer
	if claims := claimsFromContext(c); claims != nil {
		req.RequesterRole = claims.Role
	}

	slots, err := h.service.GetAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
