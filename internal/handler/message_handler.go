package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"workhub/internal/entity"
	"workhub/internal/middleware"
	"workhub/internal/service"
	"workhub/pkg/errcode"
	"workhub/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	Content     string                    `json:"content"`
	Attachments []*entity.AttachmentInput `json:"attachments"`
}

// SendMessage handles posting a message into a conversation
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
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

	var req SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.Append(ctx, conversationId, userId, req.Content, req.Attachments)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// GetMessages handles fetching a conversation's message history. Fetching
// also marks the returned messages as read for the requester.
func (h *MessageHandler) GetMessages(ctx context.Context, c *app.RequestContext) {
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

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	history, err := h.msgService.List(ctx, conversationId, userId, limit, offset)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, history)
}
