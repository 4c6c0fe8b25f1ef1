package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"workhub/internal/entity"
	"workhub/pkg/constant"
)

// ErrDuplicateDirectKey is returned when a concurrent resolve created the
// same direct conversation first. Callers re-read and return the winner.
var ErrDuplicateDirectKey = errors.New("direct conversation already exists")

// mysqlDuplicateEntry is the MySQL error number for unique key violations
const mysqlDuplicateEntry = 1062

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// GetById gets a conversation by Id
func (r *ConversationRepo) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByDirectKey gets the direct conversation for a sorted participant pair
func (r *ConversationRepo) GetByDirectKey(ctx context.Context, directKey string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("direct_key = ?", directKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// CreateWithParticipants creates a conversation and its participant rows in
// one transaction. A unique-key violation on direct_key is mapped to
// ErrDuplicateDirectKey so the caller can resolve to the winner.
func (r *ConversationRepo) CreateWithParticipants(ctx context.Context, tx *gorm.DB, conv *entity.Conversation, userIds []string) error {
	if err := tx.WithContext(ctx).Create(conv).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateDirectKey
		}
		return err
	}

	participants := make([]*entity.ConversationParticipant, 0, len(userIds))
	for _, userId := range userIds {
		participants = append(participants, &entity.ConversationParticipant{
			ConversationId: conv.Id,
			UserId:         userId,
		})
	}
	return tx.WithContext(ctx).Create(participants).Error
}

// IsParticipant checks whether userId belongs to the conversation
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationId, userId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetParticipantIds returns all participant user ids of a conversation
func (r *ConversationRepo) GetParticipantIds(ctx context.Context, conversationId string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Where("conversation_id = ?", conversationId).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetParticipants returns the participant users of a conversation
func (r *ConversationRepo) GetParticipants(ctx context.Context, conversationId string) ([]*entity.User, error) {
	var users []*entity.User
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.user_id = users.id").
		Where("cp.conversation_id = ?", conversationId).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// participantUserRow carries a user row tagged with its conversation id
type participantUserRow struct {
	entity.User
	ConversationId string `gorm:"column:conversation_id"`
}

// GetParticipantsForConversations returns participant users for a batch of
// conversations, grouped by conversation id
func (r *ConversationRepo) GetParticipantsForConversations(ctx context.Context, conversationIds []string) (map[string][]*entity.User, error) {
	result := make(map[string][]*entity.User, len(conversationIds))
	if len(conversationIds) == 0 {
		return result, nil
	}

	var rows []*participantUserRow
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Select("users.*, cp.conversation_id").
		Joins("JOIN conversation_participants cp ON cp.user_id = users.id").
		Where("cp.conversation_id IN ?", conversationIds).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		user := row.User
		result[row.ConversationId] = append(result[row.ConversationId], &user)
	}
	return result, nil
}

// ConversationListRow is one scanned row of a user's conversation list
type ConversationListRow struct {
	Id              string  `gorm:"column:id"`
	Name            *string `gorm:"column:name"`
	IsGroup         bool    `gorm:"column:is_group"`
	CreatedAt       int64   `gorm:"column:created_at"`
	LastMessage     *string `gorm:"column:last_message"`
	LastMessageTime *int64  `gorm:"column:last_message_time"`
	UnreadCount     int64   `gorm:"column:unread_count"`
}

// ListForUser returns the user's conversations ordered by latest activity,
// with last-message preview and the user's unread count per conversation.
// Unread counts are always derived from message_recipients rows.
func (r *ConversationRepo) ListForUser(ctx context.Context, userId string, limit, offset int) ([]*ConversationListRow, error) {
	if limit <= 0 || limit > constant.MaxPageSize {
		limit = constant.DefaultConversationPageSize
	}

	var rows []*ConversationListRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			c.id, c.name, c.is_group, c.created_at,
			(SELECT m.content FROM messages m
				WHERE m.conversation_id = c.id
				ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message,
			(SELECT m.created_at FROM messages m
				WHERE m.conversation_id = c.id
				ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message_time,
			(SELECT COUNT(*) FROM message_recipients mr
				JOIN messages m2 ON m2.id = mr.message_id
				WHERE m2.conversation_id = c.id
					AND mr.user_id = ? AND mr.is_read = FALSE) AS unread_count
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = ?
		ORDER BY COALESCE(last_message_time, c.created_at) DESC
		LIMIT ? OFFSET ?`,
		userId, userId, limit, offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
