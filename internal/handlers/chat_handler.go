package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/bloodbank-api/internal/api"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// ListChats returns the caller's messages; ?peerId= narrows to one
// conversation.
func (h *Handler) ListChats(c *gin.Context, actor models.Identity) {
	msgs, err := h.Service.ListChats(c.Request.Context(), actor, c.Query("peerId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessagesResponse{Messages: msgs})
}

func (h *Handler) SendMessage(c *gin.Context, actor models.Identity) {
	var req api.NewMessage
	if !bind(c, &req) {
		return
	}
	msg, err := h.Service.SendMessage(c.Request.Context(), actor, req.ReceiverID, req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.MessageResponse{Message: msg})
}

func (h *Handler) ListFeedback(c *gin.Context, actor models.Identity) {
	fb, err := h.Service.ListFeedback(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FeedbackListResponse{Feedback: fb})
}

func (h *Handler) AddFeedback(c *gin.Context, actor models.Identity) {
	var req api.NewFeedback
	if !bind(c, &req) {
		return
	}
	fb, err := h.Service.AddFeedback(c.Request.Context(), actor, req.Message, req.Rating)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.FeedbackResponse{Feedback: fb})
}

func (h *Handler) ReplyFeedback(c *gin.Context, actor models.Identity) {
	var req api.FeedbackReply
	if !bind(c, &req) {
		return
	}
	fb, err := h.Service.ReplyFeedback(c.Request.Context(), actor, req.FeedbackID, req.Reply)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FeedbackResponse{Feedback: fb})
}

func (h *Handler) ListLogs(c *gin.Context, actor models.Identity) {
	logs, err := h.Service.ListLogs(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.LogsResponse{Logs: logs})
}
