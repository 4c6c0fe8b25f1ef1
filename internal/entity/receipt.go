package entity

// MessageRecipient tracks one recipient's read state for one message.
// Rows are created unread when a message is appended (one per recipient
// other than the sender) and only ever move from unread to read.
type MessageRecipient struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	MessageId int64  `json:"message_id" gorm:"column:message_id;uniqueIndex:uk_msg_user"`
	UserId    string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_msg_user"`
	IsRead    bool   `json:"is_read" gorm:"column:is_read"`
	ReadAt    *int64 `json:"read_at" gorm:"column:read_at"`
}

// TableName returns the table name for MessageRecipient
func (MessageRecipient) TableName() string {
	return "message_recipients"
}
