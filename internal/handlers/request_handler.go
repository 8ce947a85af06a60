package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/bloodbank-api/internal/api"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// ListRequests takes an optional ?status= filter.
func (h *Handler) ListRequests(c *gin.Context, actor models.Identity) {
	status := models.RequestStatus(c.Query("status"))
	reqs, err := h.Service.ListRequests(c.Request.Context(), actor, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.RequestsResponse{Requests: reqs})
}

func (h *Handler) CreateRequest(c *gin.Context, actor models.Identity) {
	var req models.NewRequest
	if !bind(c, &req) {
		return
	}
	created, err := h.Service.CreateRequest(c.Request.Context(), actor, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.RequestResponse{Request: created})
}

func (h *Handler) UpdateRequestStatus(c *gin.Context, actor models.Identity) {
	var req api.StatusUpdate
	if !bind(c, &req) {
		return
	}
	updated, err := h.Service.UpdateRequestStatus(c.Request.Context(), actor, req.RequestID, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.RequestResponse{Request: updated})
}

func (h *Handler) ListStocks(c *gin.Context, _ models.Identity) {
	stocks, err := h.Service.ListStocks(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.StocksResponse{Stocks: stocks})
}

func (h *Handler) UpdateStock(c *gin.Context, actor models.Identity) {
	var req api.StockUpdate
	if !bind(c, &req) {
		return
	}
	stock, err := h.Service.UpdateStock(c.Request.Context(), actor, req.BloodType, req.Units)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.StockResponse{Stock: stock})
}

func (h *Handler) ListHospitals(c *gin.Context, _ models.Identity) {
	hospitals, err := h.Service.ListHospitals(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.HospitalsResponse{Hospitals: hospitals})
}

func (h *Handler) AddHospital(c *gin.Context, actor models.Identity) {
	var req models.Hospital
	if !bind(c, &req) {
		return
	}
	hospital, err := h.Service.AddHospital(c.Request.Context(), actor, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.HospitalResponse{Hospital: hospital})
}

func (h *Handler) DeleteHospital(c *gin.Context, actor models.Identity) {
	var req api.HospitalRef
	if !bind(c, &req) {
		return
	}
	if err := h.Service.DeleteHospital(c.Request.Context(), actor, req.HospitalID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}
