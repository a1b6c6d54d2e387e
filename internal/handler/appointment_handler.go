package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sunrise-clinic/booking-api/internal/models"
	"github.com/sunrise-clinic/booking-api/internal/service"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/response"
)

// AppointmentHandler wires HTTP endpoints to the appointment service.
type AppointmentHandler struct {
	service *service.AppointmentService
	metrics *service.MetricsService
}

// NewAppointmentHandler creates a new handler.
func NewAppointmentHandler(svc *service.AppointmentService, metrics *service.MetricsService) *AppointmentHandler {
	return &AppointmentHandler{service: svc, metrics: metrics}
}

// ListMine godoc
// @Summary List my appointments
// @Tags Appointments
// @Produce json
// @Param upcoming query bool false "Only upcoming appointments"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /appointments/me [get]
func (h *AppointmentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upcomingOnly := c.Query("upcoming") == "true"
	appointments, err := h.service.ListMine(c.Request.Context(), claims.UserID, upcomingOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, nil)
}

// Book godoc
// @Summary Book an appointment
// @Description Book a slot for a managed patient. The start time must match an open slot on the availability grid.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.BookAppointmentRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Book(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	appointment, err := h.service.Book(c.Request.Context(), userFromClaims(claims), req)
	if err != nil {
		h.metrics.RecordBooking(claims.Role, appErrors.FromError(err).Code)
		response.Error(c, err)
		return
	}
	h.metrics.RecordBooking(claims.Role, "committed")
	response.Created(c, appointment)
}

// Cancel godoc
// @Summary Cancel my appointment
// @Description Cancel a scheduled appointment before its start time.
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), userFromClaims(claims), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AdminList godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param technician_id query string false "Filter by technician"
// @Param patient_id query string false "Filter by patient"
// @Param status query string false "Filter by status"
// @Param from query string false "Range start (RFC3339)"
// @Param to query string false "Range end (RFC3339)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/appointments [get]
func (h *AppointmentHandler) AdminList(c *gin.Context) {
	filter := models.AppointmentFilter{
		TechnicianID: c.Query("technician_id"),
		PatientID:    c.Query("patient_id"),
	}
	if status := c.Query("status"); status != "" {
		parsed := models.AppointmentStatus(status)
		filter.Status = &parsed
	}
	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp"))
			return
		}
		filter.From = &parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp"))
			return
		}
		filter.To = &parsed
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	appointments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, pagination)
}

// AdminCreate godoc
// @Summary Create an appointment
// @Description Book on behalf of a patient, outside the slot grid, with optional price and duration overrides.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.AdminCreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/appointments [post]
func (h *AppointmentHandler) AdminCreate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AdminCreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}

	appointment, err := h.service.AdminCreate(c.Request.Context(), userFromClaims(claims), req)
	if err != nil {
		h.metrics.RecordBooking(claims.Role, appErrors.FromError(err).Code)
		response.Error(c, err)
		return
	}
	h.metrics.RecordBooking(claims.Role, "committed")
	response.Created(c, appointment)
}

// AdminUpdate godoc
// @Summary Update an appointment
// @Description Move the start, change the status or edit notes.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.AdminUpdateAppointmentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/appointments/{id} [patch]
func (h *AppointmentHandler) AdminUpdate(c *gin.Context) {
	var req service.AdminUpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	appointment, err := h.service.AdminUpdate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// AdminDelete godoc
// @Summary Delete an appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/appointments/{id} [delete]
func (h *AppointmentHandler) AdminDelete(c *gin.Context) {
	if err := h.service.AdminDelete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
