package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sunrise-clinic/booking-api/internal/models"
	"github.com/sunrise-clinic/booking-api/internal/service"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/response"
)

// CatalogHandler wires HTTP endpoints to the catalog service.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler creates a new handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

func isAdmin(c *gin.Context) bool {
	claims := claimsFromContext(c)
	return claims != nil && claims.Role == models.RoleAdmin
}

// ListLocations godoc
// @Summary List locations
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/locations [get]
func (h *CatalogHandler) ListLocations(c *gin.Context) {
	locations, err := h.service.ListLocations(c.Request.Context(), !isAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}

// CreateLocation godoc
// @Summary Create a location
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.LocationRequest true "Location payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/catalog/locations [post]
func (h *CatalogHandler) CreateLocation(c *gin.Context) {
	var req service.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid location payload"))
		return
	}
	location, err := h.service.CreateLocation(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, location)
}

// UpdateLocation godoc
// @Summary Update a location
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Location ID"
// @Param payload body service.LocationRequest true "Location payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/catalog/locations/{id} [put]
func (h *CatalogHandler) UpdateLocation(c *gin.Context) {
	var req service.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid location payload"))
		return
	}
	location, err := h.service.UpdateLocation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, location, nil)
}

// ListServices godoc
// @Summary List services
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/services [get]
func (h *CatalogHandler) ListServices(c *gin.Context) {
	services, err := h.service.ListServices(c.Request.Context(), !isAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, services, nil)
}

// CreateService godoc
// @Summary Create a service
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.ServiceRequest true "Service payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/catalog/services [post]
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req service.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid service payload"))
		return
	}
	svc, err := h.service.CreateService(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, svc)
}

// UpdateService godoc
// @Summary Update a service
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Service ID"
// @Param payload body service.ServiceRequest true "Service payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/catalog/services/{id} [put]
func (h *CatalogHandler) UpdateService(c *gin.Context) {
	var req service.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid service payload"))
		return
	}
	svc, err := h.service.UpdateService(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, svc, nil)
}

// ListTechnicians godoc
// @Summary List technicians
// @Tags Catalog
// @Produce json
// @Param location_id query string false "Filter by location"
// @Success 200 {object} response.Envelope
// @Router /catalog/technicians [get]
func (h *CatalogHandler) ListTechnicians(c *gin.Context) {
	technicians, err := h.service.ListTechnicians(c.Request.Context(), c.Query("location_id"), !isAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, technicians, nil)
}

// CreateTechnician godoc
// @Summary Create a technician
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.TechnicianRequest true "Technician payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/catalog/technicians [post]
func (h *CatalogHandler) CreateTechnician(c *gin.Context) {
	var req service.TechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid technician payload"))
		return
	}
	technician, err := h.service.CreateTechnician(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, technician)
}

// UpdateTechnician godoc
// @Summary Update a technician
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Technician ID"
// @Param payload body service.TechnicianRequest true "Technician payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/catalog/technicians/{id} [put]
func (h *CatalogHandler) UpdateTechnician(c *gin.Context) {
	var req service.TechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid technician payload"))
		return
	}
	technician, err := h.service.UpdateTechnician(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, technician, nil)
}

// ListOfferings godoc
// @Summary List a technician's offerings
// @Tags Catalog
// @Produce json
// @Param technician_id query string true "Technician ID"
// @Success 200 {object} response.Envelope
// @Router /catalog/offerings [get]
func (h *CatalogHandler) ListOfferings(c *gin.Context) {
	technicianID := c.Query("technician_id")
	if technicianID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "technician_id is required"))
		return
	}
	offerings, err := h.service.ListOfferings(c.Request.Context(), technicianID, !isAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, nil)
}

// CreateOffering godoc
// @Summary Create an offering
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.OfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/catalog/offerings [post]
func (h *CatalogHandler) CreateOffering(c *gin.Context) {
	var req service.OfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offering payload"))
		return
	}
	offering, err := h.service.CreateOffering(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// UpdateOffering godoc
// @Summary Update an offering
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body service.OfferingRequest true "Offering payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/catalog/offerings/{id} [put]
func (h *CatalogHandler) UpdateOffering(c *gin.Context) {
	var req service.OfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offering payload"))
		return
	}
	offering, err := h.service.UpdateOffering(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// DeleteOffering godoc
// @Summary Delete an offering
// @Tags Catalog
// @Produce json
// @Param id path string true "Offering ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/catalog/offerings/{id} [delete]
func (h *CatalogHandler) DeleteOffering(c *gin.Context) {
	if err := h.service.DeleteOffering(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
