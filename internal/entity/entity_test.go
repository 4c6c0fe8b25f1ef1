package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"workhub/pkg/errcode"
)

func TestDirectPairKey(t *testing.T) {
	key := DirectPairKey("user-b", "user-a")
	assert.Equal(t, "user-a:user-b", key)

	// Key is independent of argument order
	assert.Equal(t, key, DirectPairKey("user-a", "user-b"))
}

func TestFallbackConversationName(t *testing.T) {
	participants := []*UserInfo{
		{Id: "u1", Name: "Carol"},
		{Id: "u2", Name: "Alice"},
		{Id: "u3", Name: "Bob"},
	}

	// Viewer is excluded; remaining names come back sorted
	name := FallbackConversationName(participants, "u1")
	assert.Equal(t, "Alice, Bob", name)

	name = FallbackConversationName(participants, "u2")
	assert.Equal(t, "Bob, Carol", name)

	// A viewer outside the conversation sees everyone
	name = FallbackConversationName(participants, "u9")
	assert.Equal(t, "Alice, Bob, Carol", name)
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("hello", 0))

	// Empty body is only valid when attachments are present
	assert.ErrorIs(t, ValidateContent("", 0), errcode.ErrEmptyMessage)
	assert.NoError(t, ValidateContent("", 1))

	// Length bound is in runes, not bytes
	atLimit := strings.Repeat("宇", 20000)
	assert.NoError(t, ValidateContent(atLimit, 0))
	assert.ErrorIs(t, ValidateContent(atLimit+"a", 0), errcode.ErrContentTooLong)
}

func TestValidateAttachments(t *testing.T) {
	valid := []*AttachmentInput{
		{Url: "https://files.example.com/a.png", FileName: "a.png", FileType: "image"},
		{Url: "https://files.example.com/b.mp4", FileName: "b.mp4", FileType: "video"},
		{Url: "https://files.example.com/c.pdf", FileName: "c.pdf", FileType: "file"},
	}
	assert.NoError(t, ValidateAttachments(valid))
	assert.NoError(t, ValidateAttachments(nil))

	cases := []struct {
		name string
		in   []*AttachmentInput
	}{
		{"unknown file type", []*AttachmentInput{{Url: "https://x/y", FileName: "y", FileType: "audio"}}},
		{"missing url", []*AttachmentInput{{FileName: "y", FileType: "image"}}},
		{"missing file name", []*AttachmentInput{{Url: "https://x/y", FileType: "image"}}},
		{"nil entry", []*AttachmentInput{nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateAttachments(tc.in), errcode.ErrInvalidAttachment)
		})
	}

	tooMany := make([]*AttachmentInput, 11)
	for i := range tooMany {
		tooMany[i] = &AttachmentInput{Url: "https://x/y", FileName: "y", FileType: "image"}
	}
	assert.ErrorIs(t, ValidateAttachments(tooMany), errcode.ErrInvalidAttachment)
}

func TestToMessageInfo(t *testing.T) {
	msg := &Message{
		Id:             42,
		ConversationId: "conv-1",
		SenderId:       "u1",
		Content:        "see attached",
		CreatedAt:      1700000000000,
	}
	author := &UserInfo{Id: "u1", Name: "Alice", Avatar: "https://cdn/a.png"}
	attachments := []*MessageAttachment{
		{Id: 7, MessageId: 42, Url: "https://files/r.png", FileName: "r.png", FileType: "image"},
	}

	info := msg.ToMessageInfo(author, attachments)
	assert.Equal(t, int64(42), info.Id)
	assert.Equal(t, "Alice", info.Author)
	assert.Equal(t, "https://cdn/a.png", info.SenderAvatar)
	assert.Len(t, info.Attachments, 1)
	assert.Equal(t, "image", info.Attachments[0].FileType)
	assert.False(t, info.IsRead)

	// No author metadata still yields a usable payload
	bare := msg.ToMessageInfo(nil, nil)
	assert.Empty(t, bare.Author)
	assert.NotNil(t, bare.Attachments)
	assert.Len(t, bare.Attachments, 0)
}
