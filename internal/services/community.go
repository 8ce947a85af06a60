package services

import (
	"context"
	"errors"
	"strings"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/collections"
	"github.com/harentsoaR/bloodbank-api/internal/errs"
	"github.com/harentsoaR/bloodbank-api/internal/ids"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

func (s *Service) ListFeedback(ctx context.Context, actor models.Identity) ([]models.Feedback, error) {
	all, err := s.store.Feedback.Find(ctx, func(f models.Feedback) bool {
		return actor.Role == models.RoleAdmin || f.UserID == actor.ID
	})
	if err != nil {
		return nil, errs.Internal("Failed to retrieve feedback", err)
	}
	return all, nil
}

func (s *Service) AddFeedback(ctx context.Context, actor models.Identity, message string, rating int) (models.Feedback, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.Feedback{}, errs.Validation("Feedback message is required")
	}
	if rating < 1 || rating > 5 {
		return models.Feedback{}, errs.Validation("Rating must be between 1 and 5")
	}
	fb := models.Feedback{
		ID:        ids.New(),
		UserID:    actor.ID,
		UserName:  actor.Name,
		Message:   message,
		Rating:    rating,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Feedback.Insert(ctx, fb); err != nil {
		return models.Feedback{}, errs.Internal("Failed to save feedback", err)
	}
	s.publish(ctx, broadcast.EventFeedbackUpdated, fb)
	return fb, nil
}

func (s *Service) ReplyFeedback(ctx context.Context, actor models.Identity, feedbackID, reply string) (models.Feedback, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Feedback{}, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return models.Feedback{}, errs.Validation("Reply cannot be empty")
	}
	fb, err := s.store.Feedback.UpdateOne(ctx, func(f models.Feedback) bool { return f.ID == feedbackID }, func(f *models.Feedback) error {
		now := s.now().UTC()
		f.Reply = reply
		f.RepliedAt = &now
		return nil
	})
	if errors.Is(err, collections.ErrNoMatch) {
		return models.Feedback{}, errs.NotFound("Feedback not found")
	}
	if err != nil {
		return models.Feedback{}, errs.Internal("Failed to save reply", err)
	}
	s.publish(ctx, broadcast.EventFeedbackUpdated, fb)
	return fb, nil
}

func (s *Service) ListLogs(ctx context.Context, actor models.Identity) ([]models.SecurityLog, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	logs, err := s.store.Logs.List(ctx)
	if err != nil {
		return nil, errs.Internal("Failed to retrieve security logs", err)
	}
	return logs, nil
}

// SendMessage delivers a chat message. The receiver is not checked to exist.
func (s *Service) SendMessage(ctx context.Context, actor models.Identity, receiverID, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, errs.Validation("Message cannot be empty")
	}
	if receiverID == "" {
		return models.ChatMessage{}, errs.Validation("Receiver is required")
	}
	msg := models.ChatMessage{
		ID:         ids.New(),
		SenderID:   actor.ID,
		ReceiverID: receiverID,
		Text:       text,
		SentAt:     s.now().UTC(),
	}
	if err := s.store.Chats.Insert(ctx, msg); err != nil {
		return models.ChatMessage{}, errs.Internal("Failed to send message", err)
	}
	s.publish(ctx, broadcast.EventChatMessage, msg)
	return msg, nil
}

// ListChats returns the caller's messages, optionally narrowed to one peer,
// in the order they were sent. Messages addressed to the caller are marked
// read.
func (s *Service) ListChats(ctx context.Context, actor models.Identity, peerID string) ([]models.ChatMessage, error) {
	involves := func(m models.ChatMessage) bool {
		mine := m.SenderID == actor.ID || m.ReceiverID == actor.ID
		if !mine {
			return false
		}
		return peerID == "" || m.SenderID == peerID || m.ReceiverID == peerID
	}

	mine, err := s.store.Chats.Find(ctx, involves)
	if err != nil {
		return nil, errs.Internal("Failed to retrieve messages", err)
	}
	unread := false
	for _, m := range mine {
		if m.ReceiverID == actor.ID && !m.Read {
			unread = true
			break
		}
	}
	if !unread {
		return mine, nil
	}

	var out []models.ChatMessage
	err = s.store.Chats.Mutate(ctx, func(all []models.ChatMessage) ([]models.ChatMessage, error) {
		out = make([]models.ChatMessage, 0)
		for i := range all {
			if !involves(all[i]) {
				continue
			}
			if all[i].ReceiverID == actor.ID {
				all[i].Read = true
			}
			out = append(out, all[i])
		}
		return all, nil
	})
	if err != nil {
		return nil, errs.Internal("Failed to retrieve messages", err)
	}
	return out, nil
}
