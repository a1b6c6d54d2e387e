package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sunrise-clinic/booking-api/internal/service"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/response"
)

// BusinessHourHandler manages technician working-hour rules.
type BusinessHourHandler struct {
	service *service.BusinessHourService
}

// NewBusinessHourHandler creates a new handler.
func NewBusinessHourHandler(svc *service.BusinessHourService) *BusinessHourHandler {
	return &BusinessHourHandler{service: svc}
}

// List godoc
// @Summary List working-hour rules for a technician
// @Tags Schedule
// @Produce json
// @Param technician_id query string true "Technician ID"
// @Success 200 {object} response.Envelope
// @Router /admin/schedule/business-hours [get]
func (h *BusinessHourHandler) List(c *gin.Context) {
	technicianID := c.Query("technician_id")
	if technicianID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "technician_id is required"))
		return
	}
	rules, err := h.service.ListByTechnician(c.Request.Context(), technicianID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// Create godoc
// @Summary Create a working-hour rule
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.BusinessHourRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/schedule/business-hours [post]
func (h *BusinessHourHandler) Create(c *gin.Context) {
	var req service.BusinessHourRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// Update godoc
// @Summary Update a working-hour rule
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body service.BusinessHourRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/schedule/business-hours/{id} [put]
func (h *BusinessHourHandler) Update(c *gin.Context) {
	var req service.BusinessHourRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Delete godoc
// @Summary Delete a working-hour rule
// @Tags Schedule
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/schedule/business-hours/{id} [delete]
func (h *BusinessHourHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
