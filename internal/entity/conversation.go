package entity

// Conversation represents a conversation thread between two or more users.
// DirectKey is set only for non-group conversations and holds the sorted
// participant pair, so the database enforces that at most one direct
// conversation exists per unordered pair.
type Conversation struct {
	Id        string  `json:"id" gorm:"column:id;primaryKey"`
	Name      *string `json:"name" gorm:"column:name"`
	IsGroup   bool    `json:"is_group" gorm:"column:is_group"`
	DirectKey *string `json:"-" gorm:"column:direct_key;uniqueIndex"`
	CreatedAt int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant links a user to a conversation
type ConversationParticipant struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conv_user"`
	UserId         string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_conv_user"`
	JoinedAt       int64  `json:"joined_at" gorm:"column:joined_at;autoCreateTime:milli"`
}

// TableName returns the table name for ConversationParticipant
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

// ConversationSummary is one row of a user's conversation list: the
// conversation plus last-message preview and the viewer's unread count.
type ConversationSummary struct {
	Id              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	IsGroup         bool        `json:"is_group"`
	OtherUserId     string      `json:"other_user_id,omitempty"`
	OtherUserName   string      `json:"other_user_name,omitempty"`
	LastMessage     string      `json:"last_message"`
	LastMessageTime int64       `json:"last_message_time,omitempty"`
	UnreadCount     int64       `json:"unread_count"`
	Participants    []*UserInfo `json:"participants,omitempty"`
}

// ConversationDetail is a conversation header returned with message history.
type ConversationDetail struct {
	Id           string      `json:"id"`
	Name         string      `json:"name,omitempty"`
	IsGroup      bool        `json:"is_group"`
	Participants []*UserInfo `json:"participants,omitempty"`
}
