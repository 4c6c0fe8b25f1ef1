package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"workhub/internal/middleware"
	"workhub/internal/service"
	"workhub/pkg/errcode"
	"workhub/pkg/response"
)

// OnlineChecker reports whether a user has a live real-time channel
type OnlineChecker interface {
	IsOnline(ctx context.Context, userId string) bool
}

// UserHandler handles user-related requests
type UserHandler struct {
	userService *service.UserService
	online      OnlineChecker
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService, online OnlineChecker) *UserHandler {
	return &UserHandler{userService: userService, online: online}
}

// GetUserInfo handles get user info request
func (h *UserHandler) GetUserInfo(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	userInfo, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, userInfo)
}

// GetUserInfoById handles get user info by Id request
func (h *UserHandler) GetUserInfoById(ctx context.Context, c *app.RequestContext) {
	userId := c.Param("user_id")
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	userInfo, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"user":   userInfo,
		"online": h.online.IsOnline(ctx, userId),
	})
}

// UpdateUserInfo handles update user info request
func (h *UserHandler) UpdateUserInfo(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.UpdateUserRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	userInfo, err := h.userService.UpdateUserInfo(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, userInfo)
}
