package gateway

// Channel event names. Client to server: a channel joins its user's private
// room once after connecting. Server to client: a hydrated new-message
// payload, or payload-free hints telling the client to re-fetch state from
// the HTTP surface.
const (
	EventJoinUserRoom        = "join-user-room"
	EventNewMessage          = "new-message"
	EventUpdateConversations = "update-conversations"
	EventUpdateUnreadCount   = "update-unread-count"
)

// Query parameter keys
const (
	QueryToken      = "token"
	QueryPlatformId = "platform_id"
)
