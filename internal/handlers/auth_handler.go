package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/bloodbank-api/internal/api"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

func (h *Handler) Login(c *gin.Context, _ models.Identity) {
	var req api.LoginRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.Service.Login(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.signedIn(c, http.StatusOK, user)
}

func (h *Handler) SendOTP(c *gin.Context, _ models.Identity) {
	var req api.OTPRequest
	if !bind(c, &req) {
		return
	}
	debugCode, err := h.Service.SendOTP(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.OTPResponse{Success: true, DebugCode: debugCode})
}

func (h *Handler) VerifyOTP(c *gin.Context, _ models.Identity) {
	var req api.OTPRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Service.VerifyOTP(c.Request.Context(), req.Email, req.Code); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}

// Register creates the account and answers like Login.
func (h *Handler) Register(c *gin.Context, _ models.Identity) {
	var req models.Registration
	if !bind(c, &req) {
		return
	}
	user, err := h.Service.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.signedIn(c, http.StatusCreated, user)
}

func (h *Handler) signedIn(c *gin.Context, status int, user models.Identity) {
	token, err := h.Tokens.GenerateJWT(user.ID, string(user.Role))
	if err != nil {
		h.fail(c, errs.Internal("Could not generate token", err))
		return
	}
	c.JSON(status, api.AuthResponse{Token: token, User: user})
}

// Me returns the caller's own profile.
func (h *Handler) Me(c *gin.Context, actor models.Identity) {
	c.JSON(http.StatusOK, api.UserResponse{User: actor})
}

func (h *Handler) ListUsers(c *gin.Context, actor models.Identity) {
	users, err := h.Service.ListUsers(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.UsersResponse{Users: users})
}

func (h *Handler) ToggleUserStatus(c *gin.Context, actor models.Identity) {
	var req api.UserRef
	if !bind(c, &req) {
		return
	}
	user, err := h.Service.ToggleUserStatus(c.Request.Context(), actor, req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.UserResponse{User: user})
}

func (h *Handler) DeleteUser(c *gin.Context, actor models.Identity) {
	var req api.UserRef
	if !bind(c, &req) {
		return
	}
	if err := h.Service.DeleteUser(c.Request.Context(), actor, req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}

// UpdateProfile lets users change their own profile.
func (h *Handler) UpdateProfile(c *gin.Context, actor models.Identity) {
	var req models.ProfileUpdate
	if !bind(c, &req) {
		return
	}
	user, err := h.Service.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.UserResponse{User: user})
}
