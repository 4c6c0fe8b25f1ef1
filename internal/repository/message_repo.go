package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"workhub/internal/entity"
	"workhub/pkg/constant"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, rdb *redis.Client) *MessageRepo {
	return &MessageRepo{db: db, rdb: rdb}
}

// Create creates a new message
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	if msg.CreatedAt == 0 {
		msg.CreatedAt = entity.NowUnixMilli()
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// CreateAttachments creates attachment rows for a message in one insert
func (r *MessageRepo) CreateAttachments(ctx context.Context, tx *gorm.DB, attachments []*entity.MessageAttachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(attachments).Error
}

// ListByConversation returns one page of a conversation's messages ordered
// by creation time ascending, message id as tiebreaker for equal timestamps.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationId string, limit, offset int) ([]*entity.Message, error) {
	if limit <= 0 || limit > constant.MaxPageSize {
		limit = constant.DefaultMessagePageSize
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetAttachments returns all attachments for the given message ids,
// grouped by message id
func (r *MessageRepo) GetAttachments(ctx context.Context, messageIds []int64) (map[int64][]*entity.MessageAttachment, error) {
	result := make(map[int64][]*entity.MessageAttachment)
	if len(messageIds) == 0 {
		return result, nil
	}

	var attachments []*entity.MessageAttachment
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIds).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	for _, a := range attachments {
		result[a.MessageId] = append(result[a.MessageId], a)
	}
	return result, nil
}
