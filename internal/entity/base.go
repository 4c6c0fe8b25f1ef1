package entity

import (
	"sort"
	"strings"
	"time"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// DirectPairKey builds the deterministic key for a direct (two person)
// conversation. The pair is unordered, so the ids are sorted first.
// Uses ":" as separator between userIds to support userIds containing "_".
func DirectPairKey(userA, userB string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return users[0] + ":" + users[1]
}

// FallbackConversationName synthesizes a display name for a conversation
// that has no stored name, from the other participants' display names as
// seen by viewerId. Membership stays in participant rows; this label is
// computed at query time and never persisted.
func FallbackConversationName(participants []*UserInfo, viewerId string) string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.Id == viewerId {
			continue
		}
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
