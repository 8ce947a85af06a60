package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/api"
	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/middleware"
	"github.com/harentsoaR/bloodbank-api/internal/models"
	"github.com/harentsoaR/bloodbank-api/internal/services"
	"github.com/harentsoaR/bloodbank-api/internal/utils"
)

// actionFunc serves one action. actor is the zero Identity on public
// actions.
type actionFunc func(c *gin.Context, actor models.Identity)

type action struct {
	method string
	public bool
	roles  []models.Role // empty means any signed-in role
	handle actionFunc
}

// Handler serves the ?action= endpoint and the event stream.
type Handler struct {
	Service *services.Service
	Tokens  *utils.TokenIssuer
	Bus     *broadcast.Bus
	Logger  *zap.Logger
	actions map[string]action
}

func NewHandler(svc *services.Service, tokens *utils.TokenIssuer, bus *broadcast.Bus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{Service: svc, Tokens: tokens, Bus: bus, Logger: logger}
	h.actions = h.routes()
	return h
}

func (h *Handler) routes() map[string]action {
	get := func(fn actionFunc, roles ...models.Role) action {
		return action{method: http.MethodGet, roles: roles, handle: fn}
	}
	post := func(fn actionFunc, roles ...models.Role) action {
		return action{method: http.MethodPost, roles: roles, handle: fn}
	}
	public := func(fn actionFunc) action {
		return action{method: http.MethodPost, public: true, handle: fn}
	}
	admin := models.RoleAdmin

	return map[string]action{
		api.ActionLogin:     public(h.Login),
		api.ActionSendOTP:   public(h.SendOTP),
		api.ActionVerifyOTP: public(h.VerifyOTP),
		api.ActionRegister:  public(h.Register),

		api.ActionMe:               get(h.Me),
		api.ActionListUsers:        get(h.ListUsers, admin),
		api.ActionToggleUserStatus: post(h.ToggleUserStatus, admin),
		api.ActionDeleteUser:       post(h.DeleteUser, admin),
		api.ActionUpdateProfile:    post(h.UpdateProfile),

		api.ActionListRequests:        get(h.ListRequests),
		api.ActionCreateRequest:       post(h.CreateRequest, models.RoleDonor, models.RoleUser),
		api.ActionUpdateRequestStatus: post(h.UpdateRequestStatus, admin),
		api.ActionListStocks:          get(h.ListStocks),
		api.ActionUpdateStock:         post(h.UpdateStock, admin),
		api.ActionListHospitals:       get(h.ListHospitals),
		api.ActionAddHospital:         post(h.AddHospital, admin),
		api.ActionDeleteHospital:      post(h.DeleteHospital, admin),

		api.ActionListFeedback:  get(h.ListFeedback),
		api.ActionAddFeedback:   post(h.AddFeedback),
		api.ActionReplyFeedback: post(h.ReplyFeedback, admin),
		api.ActionListLogs:      get(h.ListLogs, admin),
		api.ActionListChats:     get(h.ListChats),
		api.ActionSendMessage:   post(h.SendMessage),

		api.ActionListAppointments:   get(h.ListAppointments),
		api.ActionBookAppointment:    post(h.BookAppointment, models.RoleDonor),
		api.ActionCancelAppointment:  post(h.CancelAppointment),
		api.ActionListCertificates:   get(h.ListCertificates),
		api.ActionIssueEmergencyKey:  post(h.IssueEmergencyKey, models.RoleUser, admin),
		api.ActionRedeemEmergencyKey: post(h.RedeemEmergencyKey, models.RoleUser, admin),
	}
}

// Dispatch routes GET|POST /api?action=<name>. It expects
// middleware.Authenticate to have run.
func (h *Handler) Dispatch(c *gin.Context) {
	name := c.Query("action")
	a, ok := h.actions[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown action: " + name})
		return
	}
	if c.Request.Method != a.method {
		c.Header("Allow", a.method)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Use " + a.method + " for " + name})
		return
	}
	if a.public {
		a.handle(c, models.Identity{})
		return
	}

	userID, signedIn := middleware.UserID(c)
	if !signedIn {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return
	}
	actor, err := h.Service.Actor(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !allowed(actor.Role, a.roles) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied."})
		return
	}
	a.handle(c, actor)
}

// Known reports whether name is a registered action.
func (h *Handler) Known(name string) bool {
	_, ok := h.actions[name]
	return ok
}

func allowed(role models.Role, roles []models.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes err as {"error": message} with a status for its kind.
// Errors from outside errs never leak their text.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	msg := "Internal server error"
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	if kind == errs.KindInternal {
		h.Logger.Error("action failed",
			zap.String("action", c.Query("action")),
			zap.Error(err))
	}
	c.JSON(statusFor(kind), gin.H{"error": msg})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindRejected:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindUnreachable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// bind decodes the JSON body into dst, answering 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}
