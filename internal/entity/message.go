package entity

import (
	"workhub/pkg/constant"
	"workhub/pkg/errcode"
)

// Message represents a persisted message within a conversation
type Message struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_created,priority:1"`
	SenderId       string `json:"sender_id" gorm:"column:sender_id"`
	Content        string `json:"content" gorm:"column:content;type:text"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;index:idx_conv_created,priority:2"`
	EditedAt       *int64 `json:"edited_at" gorm:"column:edited_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MessageAttachment is a stored file reference owned by one message.
// The upload subsystem hands the core already-stored url/name/type triples.
type MessageAttachment struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	MessageId int64  `json:"message_id" gorm:"column:message_id;index"`
	Url       string `json:"url" gorm:"column:url"`
	FileName  string `json:"file_name" gorm:"column:file_name"`
	FileType  string `json:"file_type" gorm:"column:file_type"`
}

// TableName returns the table name for MessageAttachment
func (MessageAttachment) TableName() string {
	return "message_attachments"
}

// AttachmentInput is the attachment shape accepted on message append
type AttachmentInput struct {
	Url      string `json:"url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

// AttachmentInfo represents an attachment in API responses
type AttachmentInfo struct {
	Id       int64  `json:"id"`
	Url      string `json:"url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

// MessageInfo is a fully hydrated message: row fields plus author metadata
// and the attachment list, as broadcast to clients and returned from fetches.
type MessageInfo struct {
	Id             int64             `json:"id"`
	ConversationId string            `json:"conversation_id"`
	SenderId       string            `json:"sender_id"`
	Author         string            `json:"author"`
	SenderAvatar   string            `json:"sender_avatar,omitempty"`
	Content        string            `json:"content"`
	Attachments    []*AttachmentInfo `json:"attachments"`
	IsRead         bool              `json:"is_read"`
	CreatedAt      int64             `json:"created_at"`
	EditedAt       *int64            `json:"edited_at,omitempty"`
}

// ToMessageInfo converts a Message plus its author and attachments
func (m *Message) ToMessageInfo(author *UserInfo, attachments []*MessageAttachment) *MessageInfo {
	infos := make([]*AttachmentInfo, 0, len(attachments))
	for _, a := range attachments {
		infos = append(infos, &AttachmentInfo{
			Id:       a.Id,
			Url:      a.Url,
			FileName: a.FileName,
			FileType: a.FileType,
		})
	}

	info := &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		Content:        m.Content,
		Attachments:    infos,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
	}
	if author != nil {
		info.Author = author.Name
		info.SenderAvatar = author.Avatar
	}
	return info
}

// ValidateContent checks the message body against the length bound and the
// empty-message rule (empty content is allowed only with attachments).
func ValidateContent(content string, attachmentCount int) error {
	if len([]rune(content)) > constant.MaxMessageContentLength {
		return errcode.ErrContentTooLong
	}
	if content == "" && attachmentCount == 0 {
		return errcode.ErrEmptyMessage
	}
	return nil
}

// ValidateAttachments checks attachment shape: non-empty url and file name,
// and a known file type.
func ValidateAttachments(attachments []*AttachmentInput) error {
	if len(attachments) > constant.MaxAttachmentsPerMsg {
		return errcode.ErrInvalidAttachment
	}
	for _, a := range attachments {
		if a == nil || a.Url == "" || a.FileName == "" {
			return errcode.ErrInvalidAttachment
		}
		if !constant.ValidFileType(a.FileType) {
			return errcode.ErrInvalidAttachment
		}
	}
	return nil
}
