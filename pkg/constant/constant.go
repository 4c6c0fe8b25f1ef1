package constant

// Attachment file types
const (
	FileTypeImage = "image"
	FileTypeVideo = "video"
	FileTypeFile  = "file"
)

// Message content limits
const (
	MaxMessageContentLength = 20000
	MaxAttachmentsPerMsg    = 10
)

// Pagination defaults
const (
	DefaultConversationPageSize = 20
	DefaultMessagePageSize      = 50
	MaxPageSize                 = 100
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWindows = 3
	PlatformIdMacOS   = 4
	PlatformIdWeb     = 5
)

// PlatformIdToName converts platform Id to name
func PlatformIdToName(platformId int) string {
	switch platformId {
	case PlatformIdIOS:
		return "iOS"
	case PlatformIdAndroid:
		return "Android"
	case PlatformIdWindows:
		return "Windows"
	case PlatformIdMacOS:
		return "macOS"
	case PlatformIdWeb:
		return "Web"
	default:
		return "Unknown"
	}
}

// ValidFileType reports whether t is an accepted attachment file type.
func ValidFileType(t string) bool {
	return t == FileTypeImage || t == FileTypeVideo || t == FileTypeFile
}

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyToken  = "token:%s:%d" // token:{user_id}:{platform_id}
	redisKeyOnline = "online:%s"   // online:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "workhub:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyToken() string  { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
