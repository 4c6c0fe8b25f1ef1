package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"

	"workhub/internal/entity"
	"workhub/internal/repository"
	"workhub/pkg/errcode"
)

// Pusher is the real-time fan-out surface the message path publishes to.
// The broadcaster is injected here; delivery is fire-and-forget and must
// never block or fail the request that triggered it.
type Pusher interface {
	// PushNewMessage delivers the hydrated message to every registered
	// channel of each target user.
	PushNewMessage(msg *entity.MessageInfo, userIds []string)
	// SignalConversationsChanged tells the target users to re-fetch their
	// conversation list. No payload.
	SignalConversationsChanged(userIds []string)
	// SignalUnreadChanged tells one user to re-fetch their unread count.
	// No payload.
	SignalUnreadChanged(userId string)
}

// MessageService persists messages with their attachments and serves
// conversation history. The persisted store is the source of truth; the
// pusher only hints connected clients.
type MessageService struct {
	msgRepo       *repository.MessageRepo
	convRepo      *repository.ConversationRepo
	recipientRepo *repository.RecipientRepo
	userRepo      *repository.UserRepo
	repos         *repository.Repositories
	pusher        Pusher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories) *MessageService {
	return &MessageService{
		msgRepo:       repos.Message,
		convRepo:      repos.Conversation,
		recipientRepo: repos.Recipient,
		userRepo:      repos.User,
		repos:         repos,
	}
}

// SetPusher sets the real-time pusher
func (s *MessageService) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// requireParticipant loads the conversation and verifies userId belongs to it
func (s *MessageService) requireParticipant(ctx context.Context, conversationId, userId string) (*entity.Conversation, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "load conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	ok, err := s.convRepo.IsParticipant(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "participant check failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return nil, errcode.ErrInternalServer
	}
	if !ok {
		return nil, errcode.ErrNotParticipant
	}
	return conv, nil
}

// Append persists a message with its attachments and unread recipient rows
// as one transaction, then fans the hydrated message out to the other
// participants. A failed append leaves no partial state behind.
func (s *MessageService) Append(ctx context.Context, conversationId, senderId, content string, attachments []*entity.AttachmentInput) (*entity.MessageInfo, error) {
	if _, err := s.requireParticipant(ctx, conversationId, senderId); err != nil {
		return nil, err
	}

	if err := entity.ValidateContent(content, len(attachments)); err != nil {
		return nil, err
	}
	if err := entity.ValidateAttachments(attachments); err != nil {
		return nil, err
	}

	participantIds, err := s.convRepo.GetParticipantIds(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get participants failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	recipients := make([]string, 0, len(participantIds))
	for _, id := range participantIds {
		if id != senderId {
			recipients = append(recipients, id)
		}
	}

	msg := &entity.Message{
		ConversationId: conversationId,
		SenderId:       senderId,
		Content:        content,
	}

	rows := make([]*entity.MessageAttachment, 0, len(attachments))

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
			return err
		}

		for _, a := range attachments {
			rows = append(rows, &entity.MessageAttachment{
				MessageId: msg.Id,
				Url:       a.Url,
				FileName:  a.FileName,
				FileType:  a.FileType,
			})
		}
		if err := s.msgRepo.CreateAttachments(ctx, tx, rows); err != nil {
			return err
		}

		return s.recipientRepo.CreateForMessage(ctx, tx, msg.Id, recipients)
	})
	if err != nil {
		log.CtxError(ctx, "append message failed: conversation_id=%s, sender_id=%s, error=%v", conversationId, senderId, err)
		return nil, errcode.ErrSendFailed
	}

	sender, err := s.userRepo.GetById(ctx, senderId)
	if err != nil {
		log.CtxError(ctx, "load sender failed: sender_id=%s, error=%v", senderId, err)
		return nil, errcode.ErrInternalServer
	}
	if sender == nil {
		return nil, errcode.ErrUserNotFound
	}

	info := msg.ToMessageInfo(sender.ToUserInfo(), rows)
	info.IsRead = true // sender has read their own message

	if s.pusher != nil {
		// Recipients get their own view: the message is unread for them
		broadcast := *info
		broadcast.IsRead = false
		s.pusher.PushNewMessage(&broadcast, recipients)
		s.pusher.SignalConversationsChanged(recipients)
		for _, id := range recipients {
			s.pusher.SignalUnreadChanged(id)
		}
	}

	log.CtxInfo(ctx, "message appended: conversation_id=%s, sender_id=%s, message_id=%d, attachments=%d",
		conversationId, senderId, msg.Id, len(rows))
	return info, nil
}

// ConversationHistory is one page of message history plus the conversation
// header as returned to the fetching client.
type ConversationHistory struct {
	Messages     []*entity.MessageInfo      `json:"messages"`
	Conversation *entity.ConversationDetail `json:"conversation"`
}

// List returns one page of a conversation's messages, oldest first, hydrated
// with author metadata and attachments. As a side effect the requester's
// receipts over the page are created if missing and marked read.
func (s *MessageService) List(ctx context.Context, conversationId, requesterId string, limit, offset int) (*ConversationHistory, error) {
	conv, err := s.requireParticipant(ctx, conversationId, requesterId)
	if err != nil {
		return nil, err
	}

	messages, err := s.msgRepo.ListByConversation(ctx, conversationId, limit, offset)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}

	messageIds := make([]int64, 0, len(messages))
	senderIds := make([]string, 0, len(messages))
	seenSenders := make(map[string]struct{})
	receiptIds := make([]int64, 0, len(messages))
	for _, m := range messages {
		messageIds = append(messageIds, m.Id)
		if _, ok := seenSenders[m.SenderId]; !ok {
			seenSenders[m.SenderId] = struct{}{}
			senderIds = append(senderIds, m.SenderId)
		}
		if m.SenderId != requesterId {
			receiptIds = append(receiptIds, m.Id)
		}
	}

	attachmentsByMsg, err := s.msgRepo.GetAttachments(ctx, messageIds)
	if err != nil {
		log.CtxError(ctx, "load attachments failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	senders, err := s.userRepo.GetByIds(ctx, senderIds)
	if err != nil {
		log.CtxError(ctx, "load senders failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	senderById := make(map[string]*entity.UserInfo, len(senders))
	for _, u := range senders {
		senderById[u.Id] = u.ToUserInfo()
	}

	readFlags, err := s.recipientRepo.GetReadFlags(ctx, receiptIds, requesterId)
	if err != nil {
		log.CtxError(ctx, "load read flags failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	// Fetching is consumption: backfill any missing receipts, then mark the
	// page read.
	if err := s.recipientRepo.EnsureForUser(ctx, receiptIds, requesterId); err != nil {
		log.CtxError(ctx, "ensure receipts failed: conversation_id=%s, user_id=%s, error=%v", conversationId, requesterId, err)
		return nil, errcode.ErrInternalServer
	}
	if _, err := s.recipientRepo.MarkMessagesRead(ctx, receiptIds, requesterId); err != nil {
		log.CtxError(ctx, "mark page read failed: conversation_id=%s, user_id=%s, error=%v", conversationId, requesterId, err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.MessageInfo, 0, len(messages))
	for _, m := range messages {
		info := m.ToMessageInfo(senderById[m.SenderId], attachmentsByMsg[m.Id])
		info.IsRead = m.SenderId == requesterId || readFlags[m.Id]
		infos = append(infos, info)
	}

	detail, err := s.conversationDetail(ctx, conv, requesterId)
	if err != nil {
		return nil, err
	}

	if s.pusher != nil && len(receiptIds) > 0 {
		s.pusher.SignalUnreadChanged(requesterId)
	}

	return &ConversationHistory{Messages: infos, Conversation: detail}, nil
}

// conversationDetail builds the conversation header: stored or synthesized
// name, and the participant list for groups.
func (s *MessageService) conversationDetail(ctx context.Context, conv *entity.Conversation, viewerId string) (*entity.ConversationDetail, error) {
	users, err := s.convRepo.GetParticipants(ctx, conv.Id)
	if err != nil {
		log.CtxError(ctx, "load participants failed: conversation_id=%s, error=%v", conv.Id, err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, u.ToUserInfo())
	}

	detail := &entity.ConversationDetail{
		Id:      conv.Id,
		IsGroup: conv.IsGroup,
		Name:    displayName(conv.Name, infos, viewerId),
	}
	if conv.IsGroup {
		detail.Participants = infos
	}
	return detail, nil
}
