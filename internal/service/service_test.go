package service

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"workhub/internal/entity"
	"workhub/internal/repository"
	"workhub/pkg/errcode"
)

func newMockRepos(t *testing.T) (*repository.Repositories, sqlmock.Sqlmock) {
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

	repos := &repository.Repositories{DB: db}
	repos.User = repository.NewUserRepo(db, nil)
	repos.Conversation = repository.NewConversationRepo(db, nil)
	repos.Message = repository.NewMessageRepo(db, nil)
	repos.Recipient = repository.NewRecipientRepo(db, nil)
	return repos, mock
}

// recordingPusher captures fan-out calls for assertions
type recordingPusher struct {
	mu            sync.Mutex
	newMessages   []*entity.MessageInfo
	newMessageTo  [][]string
	convChangedTo [][]string
	unreadChanged []string
}

func (p *recordingPusher) PushNewMessage(msg *entity.MessageInfo, userIds []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newMessages = append(p.newMessages, msg)
	p.newMessageTo = append(p.newMessageTo, userIds)
}

func (p *recordingPusher) SignalConversationsChanged(userIds []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.convChangedTo = append(p.convChangedTo, userIds)
}

func (p *recordingPusher) SignalUnreadChanged(userId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unreadChanged = append(p.unreadChanged, userId)
}

func activeUserRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "email", "is_active"})
	for _, id := range ids {
		rows.AddRow(id, "User "+id, id+"@example.com", true)
	}
	return rows
}

func TestResolveDirect_ReturnsExisting(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewConversationService(repos)

	mock.ExpectQuery("SELECT .* FROM `users` WHERE id IN .* AND is_active = ?").
		WillReturnRows(activeUserRows("alice", "bob"))
	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE direct_key = ?").
		WithArgs("alice:bob", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_group", "direct_key"}).
			AddRow("conv-1", false, "alice:bob"))

	// Pair order does not matter; no insert happens
	conv, err := svc.ResolveDirect(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.Id)
	assert.False(t, conv.IsGroup)
}

func TestResolveDirect_RejectsSelfPair(t *testing.T) {
	repos, _ := newMockRepos(t)
	svc := NewConversationService(repos)

	_, err := svc.ResolveDirect(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)

	_, err = svc.ResolveDirect(context.Background(), "alice", "")
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestResolveDirect_UnknownParticipant(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewConversationService(repos)

	// Only one of the two ids resolves to an active user
	mock.ExpectQuery("SELECT .* FROM `users` WHERE id IN .* AND is_active = ?").
		WillReturnRows(activeUserRows("alice"))

	_, err := svc.ResolveDirect(context.Background(), "alice", "ghost")
	assert.ErrorIs(t, err, errcode.ErrParticipantNotFound)
}

func TestCreateGroup_RequiresOtherMembers(t *testing.T) {
	repos, _ := newMockRepos(t)
	svc := NewConversationService(repos)

	// The creator alone, even repeated, is not a group
	_, err := svc.CreateGroup(context.Background(), "alice", []string{"alice", "alice"}, "")
	assert.ErrorIs(t, err, errcode.ErrTooFewParticipants)
}

func TestAppend_RejectsNonParticipant(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewMessageService(repos)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE id = ?").
		WithArgs("conv-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_group"}).AddRow("conv-1", false))
	mock.ExpectQuery("SELECT count.* FROM `conversation_participants`").
		WithArgs("conv-1", "mallory").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := svc.Append(context.Background(), "conv-1", "mallory", "hi", nil)
	assert.ErrorIs(t, err, errcode.ErrNotParticipant)
}

func TestAppend_RejectsEmptyMessage(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewMessageService(repos)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE id = ?").
		WithArgs("conv-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_group"}).AddRow("conv-1", false))
	mock.ExpectQuery("SELECT count.* FROM `conversation_participants`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Append(context.Background(), "conv-1", "alice", "", nil)
	assert.ErrorIs(t, err, errcode.ErrEmptyMessage)
}

func TestAppend_PersistsAndFansOut(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewMessageService(repos)
	pusher := &recordingPusher{}
	svc.SetPusher(pusher)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE id = ?").
		WithArgs("conv-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_group"}).AddRow("conv-1", true))
	mock.ExpectQuery("SELECT count.* FROM `conversation_participants`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT `user_id` FROM `conversation_participants`").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).
			AddRow("alice").AddRow("bob").AddRow("carol"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `messages`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO `message_attachments`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `message_recipients`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT .* FROM `users` WHERE id = ?").
		WithArgs("alice", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "avatar"}).
			AddRow("alice", "Alice", "https://cdn/a.png"))

	attachments := []*entity.AttachmentInput{
		{Url: "https://files/spec.pdf", FileName: "spec.pdf", FileType: "file"},
	}
	info, err := svc.Append(context.Background(), "conv-1", "alice", "latest draft", attachments)
	require.NoError(t, err)

	assert.Equal(t, int64(7), info.Id)
	assert.Equal(t, "Alice", info.Author)
	assert.True(t, info.IsRead)
	require.Len(t, info.Attachments, 1)
	assert.Equal(t, "spec.pdf", info.Attachments[0].FileName)

	// Fan-out goes to everyone except the sender
	require.Len(t, pusher.newMessageTo, 1)
	assert.ElementsMatch(t, []string{"bob", "carol"}, pusher.newMessageTo[0])
	require.Len(t, pusher.convChangedTo, 1)
	assert.ElementsMatch(t, []string{"bob", "carol"}, pusher.convChangedTo[0])
	assert.ElementsMatch(t, []string{"bob", "carol"}, pusher.unreadChanged)

	// The broadcast carries the recipients' view, not the sender's
	require.Len(t, pusher.newMessages, 1)
	assert.False(t, pusher.newMessages[0].IsRead)
	assert.Equal(t, "latest draft", pusher.newMessages[0].Content)
}

func TestMarkConversationRead_UnknownConversation(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewReadService(repos)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE id = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.MarkConversationRead(context.Background(), "nope", "alice")
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)
}

func TestMarkConversationRead_SignalsUnread(t *testing.T) {
	repos, mock := newMockRepos(t)
	svc := NewReadService(repos)
	pusher := &recordingPusher{}
	svc.SetPusher(pusher)

	mock.ExpectQuery("SELECT .* FROM `conversations` WHERE id = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_group"}).AddRow("conv-1", false))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `message_recipients` SET").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	updated, err := svc.MarkConversationRead(context.Background(), "conv-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.Equal(t, []string{"alice"}, pusher.unreadChanged)
}
