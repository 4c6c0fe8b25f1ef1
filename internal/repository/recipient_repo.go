package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workhub/internal/entity"
)

// RecipientRepo is the repository for per-recipient read state
type RecipientRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewRecipientRepo creates a new RecipientRepo
func NewRecipientRepo(db *gorm.DB, rdb *redis.Client) *RecipientRepo {
	return &RecipientRepo{db: db, rdb: rdb}
}

// CreateForMessage inserts unread recipient rows for one message, one per
// recipient, as a single batched insert. Existing rows are left untouched
// so the call is idempotent and never regresses read state.
func (r *RecipientRepo) CreateForMessage(ctx context.Context, tx *gorm.DB, messageId int64, recipientIds []string) error {
	if len(recipientIds) == 0 {
		return nil
	}

	rows := make([]*entity.MessageRecipient, 0, len(recipientIds))
	for _, userId := range recipientIds {
		rows = append(rows, &entity.MessageRecipient{
			MessageId: messageId,
			UserId:    userId,
			IsRead:    false,
		})
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rows).Error
}

// EnsureForUser lazily creates missing unread rows for a user who has just
// become aware of the given messages. Idempotent.
func (r *RecipientRepo) EnsureForUser(ctx context.Context, messageIds []int64, userId string) error {
	if len(messageIds) == 0 {
		return nil
	}

	rows := make([]*entity.MessageRecipient, 0, len(messageIds))
	for _, messageId := range messageIds {
		rows = append(rows, &entity.MessageRecipient{
			MessageId: messageId,
			UserId:    userId,
			IsRead:    false,
		})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rows).Error
}

// MarkMessagesRead marks the user's rows for the given messages as read.
// Only unread rows are touched; read_at is never overwritten.
func (r *RecipientRepo) MarkMessagesRead(ctx context.Context, messageIds []int64, userId string) (int64, error) {
	if len(messageIds) == 0 {
		return 0, nil
	}

	now := entity.NowUnixMilli()
	result := r.db.WithContext(ctx).
		Model(&entity.MessageRecipient{}).
		Where("user_id = ? AND is_read = ? AND message_id IN ?", userId, false, messageIds).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

// MarkConversationRead marks every unread row the user has in the
// conversation as read. A second call with nothing newly unread updates
// zero rows.
func (r *RecipientRepo) MarkConversationRead(ctx context.Context, conversationId, userId string) (int64, error) {
	now := entity.NowUnixMilli()
	subQuery := r.db.
		Model(&entity.Message{}).
		Select("id").
		Where("conversation_id = ?", conversationId)

	result := r.db.WithContext(ctx).
		Model(&entity.MessageRecipient{}).
		Where("user_id = ? AND is_read = ? AND message_id IN (?)", userId, false, subQuery).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

// CountUnreadByConversation returns the user's unread count in one conversation
func (r *RecipientRepo) CountUnreadByConversation(ctx context.Context, userId, conversationId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.MessageRecipient{}).
		Joins("JOIN messages m ON m.id = message_recipients.message_id").
		Where("message_recipients.user_id = ? AND message_recipients.is_read = ? AND m.conversation_id = ?",
			userId, false, conversationId).
		Count(&count).Error
	return count, err
}

// CountUnreadGlobal returns the user's unread count across all conversations
func (r *RecipientRepo) CountUnreadGlobal(ctx context.Context, userId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.MessageRecipient{}).
		Where("user_id = ? AND is_read = ?", userId, false).
		Count(&count).Error
	return count, err
}

// GetReadFlags returns message_id -> is_read for the user's rows over the
// given messages. Messages without a row are absent from the map.
func (r *RecipientRepo) GetReadFlags(ctx context.Context, messageIds []int64, userId string) (map[int64]bool, error) {
	flags := make(map[int64]bool, len(messageIds))
	if len(messageIds) == 0 {
		return flags, nil
	}

	var rows []*entity.MessageRecipient
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id IN ?", userId, messageIds).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		flags[row.MessageId] = row.IsRead
	}
	return flags, nil
}
