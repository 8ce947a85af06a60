package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/bloodbank-api/internal/api"
	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/services"
)

func (h *Handler) BookAppointment(c *gin.Context, actor models.Identity) {
	var req api.NewAppointment
	if !bind(c, &req) {
		return
	}
	apt, err := h.Service.BookAppointment(c.Request.Context(), actor, req.HospitalID, req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.AppointmentResponse{Appointment: apt})
}

// ListAppointments filters by ?startDate=&endDate= (YYYY-MM-DD, end day
// inclusive) and ?status=. Donors only ever see their own.
func (h *Handler) ListAppointments(c *gin.Context, actor models.Identity) {
	var f services.AppointmentFilter
	if s := c.Query("startDate"); s != "" {
		if from, err := time.Parse(api.DateLayout, s); err == nil {
			f.From = from
		}
	}
	if s := c.Query("endDate"); s != "" {
		if to, err := time.Parse(api.DateLayout, s); err == nil {
			f.To = to.Add(24*time.Hour - time.Nanosecond)
		}
	}
	f.Status = models.AppointmentStatus(c.Query("status"))

	apts, err := h.Service.ListAppointments(c.Request.Context(), actor, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if apts == nil {
		apts = make([]models.Appointment, 0)
	}
	c.JSON(http.StatusOK, api.AppointmentsResponse{Appointments: apts})
}

func (h *Handler) CancelAppointment(c *gin.Context, actor models.Identity) {
	var req api.AppointmentRef
	if !bind(c, &req) {
		return
	}
	apt, err := h.Service.CancelAppointment(c.Request.Context(), actor, req.AppointmentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.AppointmentResponse{Appointment: apt})
}

func (h *Handler) ListCertificates(c *gin.Context, actor models.Identity) {
	certs, err := h.Service.ListCertificates(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.CertificatesResponse{Certificates: certs})
}

func (h *Handler) IssueEmergencyKey(c *gin.Context, actor models.Identity) {
	var req api.EmergencyKeyRequest
	if !bind(c, &req) {
		return
	}
	key, err := h.Service.IssueEmergencyKey(c.Request.Context(), actor, req.BloodType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.EmergencyKeyResponse{Key: key})
}

func (h *Handler) RedeemEmergencyKey(c *gin.Context, actor models.Identity) {
	var req api.EmergencyKeyRequest
	if !bind(c, &req) {
		return
	}
	created, err := h.Service.RedeemEmergencyKey(c.Request.Context(), actor, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.RequestResponse{Request: created})
}
