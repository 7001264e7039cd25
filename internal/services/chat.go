package services

import (
	"context"
	"log"
	"strings"

	"ecosense/internal/assistant"
	"ecosense/internal/models"
)

// messageStore is the slice of the message repository the chat flows need.
type messageStore interface {
	ListByUser(ctx context.Context, userID int64) ([]models.ChatMessage, error)
	Append(ctx context.Context, userID int64, role, content string) error
	DeleteByUser(ctx context.Context, userID int64) error
}

// sendLimiter decides whether a user may send another message right now.
type sendLimiter interface {
	Allow(ctx context.Context, userID int64) bool
}

// updateNotifier fans a history change out to connected clients.
type updateNotifier interface {
	HistoryUpdated(ctx context.Context, userID int64)
}

type ChatService struct {
	messages messageStore
	provider assistant.Provider
	limiter  sendLimiter
	notifier updateNotifier
}

func NewChatService(messages messageStore, provider assistant.Provider, limiter sendLimiter, notifier updateNotifier) *ChatService {
	return &ChatService{
		messages: messages,
		provider: provider,
		limiter:  limiter,
		notifier: notifier,
	}
}

// History returns the user's conversation, oldest first. A user with no
// messages gets an empty slice, not nil.
func (s *ChatService) History(ctx context.Context, userID int64) ([]models.ChatMessage, error) {
	return s.messages.ListByUser(ctx, userID)
}

// Send stores the user's message, asks the assistant for a reply, stores the
// reply and returns it. The user's message stays stored even when the
// assistant fails, so the next history fetch still shows it.
func (s *ChatService) Send(ctx context.Context, userID int64, message string) (*models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Message: "Message is required"}
	}

	if !s.limiter.Allow(ctx, userID) {
		return nil, &RateLimitError{Message: "rate limited"}
	}

	history, err := s.messages.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.Append(ctx, userID, "user", message); err != nil {
		return nil, err
	}

	reply, err := s.provider.Reply(ctx, history, message)
	if err != nil {
		log.Printf("assistant reply failed for user %d: %v", userID, err)
		return nil, &UpstreamError{Message: "The assistant is unavailable right now"}
	}

	if err := s.messages.Append(ctx, userID, "assistant", reply); err != nil {
		return nil, err
	}

	s.notifier.HistoryUpdated(ctx, userID)

	return &models.ChatMessage{Role: "assistant", Content: reply}, nil
}

// Clear deletes the user's conversation.
func (s *ChatService) Clear(ctx context.Context, userID int64) error {
	if err := s.messages.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	s.notifier.HistoryUpdated(ctx, userID)
	return nil
}
