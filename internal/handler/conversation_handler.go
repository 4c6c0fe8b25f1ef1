package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"workhub/internal/middleware"
	"workhub/internal/service"
	"workhub/pkg/errcode"
	"workhub/pkg/response"
)

// ConversationHandler handles conversation-related requests
type ConversationHandler struct {
	convService *service.ConversationService
	readService *service.ReadService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService, readService *service.ReadService) *ConversationHandler {
	return &ConversationHandler{convService: convService, readService: readService}
}

// GetConversationList returns the requester's conversations with previews
// and unread counts, most recently active first
func (h *ConversationHandler) GetConversationList(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	conversations, err := h.convService.GetUserConversations(ctx, userId, limit, offset)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"conversations": conversations,
	})
}

// CreateConversationRequest represents create conversation request.
// A direct conversation takes exactly one participant id; a group takes
// one or more plus an optional name.
type CreateConversationRequest struct {
	IsGroup        bool     `json:"is_group"`
	ParticipantIds []string `json:"participant_ids"`
	Name           string   `json:"name"`
}

// CreateConversation resolves a direct conversation or creates a group one
func (h *ConversationHandler) CreateConversation(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req CreateConversationRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if req.IsGroup {
		conv, err := h.convService.CreateGroup(ctx, userId, req.ParticipantIds, req.Name)
		if err != nil {
			response.Error(ctx, c, err)
			return
		}
		response.Success(ctx, c, conv)
		return
	}

	if len(req.ParticipantIds) != 1 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.convService.ResolveDirect(ctx, userId, req.ParticipantIds[0])
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, conv)
}

// MarkRead marks every message in the conversation as read for the requester
func (h *ConversationHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Param("id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	updated, err := h.readService.MarkConversationRead(ctx, conversationId, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"updated": updated,
	})
}

// GetConversationUnreadCount returns the requester's unread count in one
// conversation
func (h *ConversationHandler) GetConversationUnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Param("id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	count, err := h.readService.PerConversationUnread(ctx, userId, conversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"count": count,
	})
}

// GetUnreadCount returns the requester's total unread message count
func (h *ConversationHandler) GetUnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	count, err := h.readService.GlobalUnread(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"count": count,
	})
}
