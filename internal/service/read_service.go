package service

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"workhub/internal/repository"
	"workhub/pkg/errcode"
)

// ReadService tracks per-recipient read state and aggregates unread counts.
// Counts are always computed from recipient rows; there is no cache that
// can drift.
type ReadService struct {
	recipientRepo *repository.RecipientRepo
	convRepo      *repository.ConversationRepo
	pusher        Pusher
}

// NewReadService creates a new ReadService
func NewReadService(repos *repository.Repositories) *ReadService {
	return &ReadService{
		recipientRepo: repos.Recipient,
		convRepo:      repos.Conversation,
	}
}

// SetPusher sets the real-time pusher
func (s *ReadService) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// MarkConversationRead marks every unread message the user has in the
// conversation as read and returns the number of rows that changed.
// Idempotent: a second call with nothing newly unread changes nothing.
func (s *ReadService) MarkConversationRead(ctx context.Context, conversationId, userId string) (int64, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "load conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return 0, errcode.ErrInternalServer
	}
	if conv == nil {
		return 0, errcode.ErrConvNotFound
	}

	updated, err := s.recipientRepo.MarkConversationRead(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "mark conversation read failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return 0, errcode.ErrInternalServer
	}

	if s.pusher != nil {
		s.pusher.SignalUnreadChanged(userId)
	}

	if updated > 0 {
		log.CtxInfo(ctx, "conversation marked read: conversation_id=%s, user_id=%s, updated=%d", conversationId, userId, updated)
	}
	return updated, nil
}

// PerConversationUnread returns the user's unread count in one conversation
func (s *ReadService) PerConversationUnread(ctx context.Context, userId, conversationId string) (int64, error) {
	count, err := s.recipientRepo.CountUnreadByConversation(ctx, userId, conversationId)
	if err != nil {
		log.CtxError(ctx, "count conversation unread failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}

// GlobalUnread returns the user's unread count across all conversations.
// Equal by construction to the sum of per-conversation counts, since both
// derive from the same recipient rows.
func (s *ReadService) GlobalUnread(ctx context.Context, userId string) (int64, error) {
	count, err := s.recipientRepo.CountUnreadGlobal(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "count global unread failed: user_id=%s, error=%v", userId, err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}
