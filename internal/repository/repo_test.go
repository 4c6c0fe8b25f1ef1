package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"workhub/internal/entity"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestConversationRepo_GetByDirectKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db, nil)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE direct_key = ?").
		WithArgs("alice:bob", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_group", "direct_key", "created_at"}).
			AddRow("conv-1", nil, false, "alice:bob", int64(1700000000000)))

	conv, err := repo.GetByDirectKey(context.Background(), "alice:bob")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "conv-1", conv.Id)
	assert.False(t, conv.IsGroup)
	require.NotNil(t, conv.DirectKey)
	assert.Equal(t, "alice:bob", *conv.DirectKey)
}

func TestConversationRepo_GetByDirectKeyMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db, nil)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE direct_key = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Absence is not an error, the caller decides whether to create
	conv, err := repo.GetByDirectKey(context.Background(), "alice:bob")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestConversationRepo_CreateDuplicateDirectKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `conversations`").
		WillReturnError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	key := "alice:bob"
	conv := &entity.Conversation{Id: "conv-2", DirectKey: &key}
	err := repo.CreateWithParticipants(context.Background(), db, conv, []string{"alice", "bob"})
	assert.ErrorIs(t, err, ErrDuplicateDirectKey)
}

func TestConversationRepo_IsParticipant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db, nil)

	mock.ExpectQuery("SELECT count.* FROM `conversation_participants`").
		WithArgs("conv-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.IsParticipant(context.Background(), "conv-1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConversationRepo_ListForUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db, nil)

	preview := "lunch?"
	mock.ExpectQuery("SELECT.+FROM conversations c.+ORDER BY COALESCE").
		WithArgs("alice", "alice", 20, 0).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "is_group", "created_at", "last_message", "last_message_time", "unread_count"}).
			AddRow("conv-1", nil, false, int64(1700000000000), preview, int64(1700000050000), int64(3)).
			AddRow("conv-2", "Platform Team", true, int64(1699990000000), nil, nil, int64(0)))

	rows, err := repo.ListForUser(context.Background(), "alice", 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "conv-1", rows[0].Id)
	assert.Equal(t, int64(3), rows[0].UnreadCount)
	require.NotNil(t, rows[0].LastMessage)
	assert.Equal(t, "lunch?", *rows[0].LastMessage)

	// A conversation with no messages yet has no preview
	assert.Nil(t, rows[1].LastMessage)
	assert.Nil(t, rows[1].LastMessageTime)
}

func TestMessageRepo_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `messages`").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	msg := &entity.Message{ConversationId: "conv-1", SenderId: "alice", Content: "hi"}
	require.NoError(t, repo.Create(context.Background(), db, msg))

	assert.Equal(t, int64(42), msg.Id)
	assert.NotZero(t, msg.CreatedAt)
}

func TestMessageRepo_ListByConversation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, nil)

	// Oldest first, id breaks timestamp ties; limit falls back to the
	// default when the caller passes none
	mock.ExpectQuery("SELECT .* FROM `messages` WHERE conversation_id = .* ORDER BY created_at ASC, id ASC LIMIT \\?").
		WithArgs("conv-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "content", "created_at"}).
			AddRow(int64(1), "conv-1", "alice", "first", int64(1000)).
			AddRow(int64(2), "conv-1", "bob", "second", int64(1000)))

	messages, err := repo.ListByConversation(context.Background(), "conv-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(1), messages[0].Id)
	assert.Equal(t, int64(2), messages[1].Id)
}

func TestRecipientRepo_CreateForMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepo(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `message_recipients`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	err := repo.CreateForMessage(context.Background(), db, 42, []string{"bob", "carol"})
	require.NoError(t, err)

	// No recipients means no statement at all
	require.NoError(t, repo.CreateForMessage(context.Background(), db, 42, nil))
}

func TestRecipientRepo_MarkConversationRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepo(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `message_recipients` SET").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	updated, err := repo.MarkConversationRead(context.Background(), "conv-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated)
}

func TestRecipientRepo_MarkMessagesReadEmpty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewRecipientRepo(db, nil)

	updated, err := repo.MarkMessagesRead(context.Background(), nil, "alice")
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestRecipientRepo_CountUnreadGlobal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepo(db, nil)

	mock.ExpectQuery("SELECT count.* FROM `message_recipients`").
		WithArgs("alice", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountUnreadGlobal(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestRecipientRepo_GetReadFlags(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepo(db, nil)

	mock.ExpectQuery("SELECT .* FROM `message_recipients`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "message_id", "user_id", "is_read"}).
			AddRow(int64(1), int64(10), "alice", true).
			AddRow(int64(2), int64(11), "alice", false))

	flags, err := repo.GetReadFlags(context.Background(), []int64{10, 11, 12}, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{10: true, 11: false}, flags)
}
