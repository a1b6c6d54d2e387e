package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sunrise-clinic/booking-api/internal/service"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/response"
)

// PatientHandler wires HTTP endpoints to the patient service.
type PatientHandler struct {
	service *service.PatientService
}

// NewPatientHandler creates a new handler.
func NewPatientHandler(svc *service.PatientService) *PatientHandler {
	return &PatientHandler{service: svc}
}

// List godoc
// @Summary List my patients
// @Tags Patients
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/patients [get]
func (h *PatientHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	patients, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patients, nil)
}

// Create godoc
// @Summary Register a patient
// @Tags Patients
// @Accept json
// @Produce json
// @Param payload body service.PatientRequest true "Patient payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/patients [post]
func (h *PatientHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid patient payload"))
		return
	}

	patient, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, patient)
}

// Update godoc
// @Summary Update a patient
// @Tags Patients
// @Accept json
// @Produce json
// @Param id path string true "Patient ID"
// @Param payload body service.PatientRequest true "Patient payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/patients/{id} [put]
func (h *PatientHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid patient payload"))
		return
	}

	patient, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patient, nil)
}

// Delete godoc
// @Summary Delete a patient
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/patients/{id} [delete]
func (h *PatientHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
