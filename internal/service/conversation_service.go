package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"

	"workhub/internal/entity"
	"workhub/internal/repository"
	"workhub/pkg/errcode"
	"workhub/pkg/idgen"
)

// ConversationService resolves conversation identity and serves the
// conversation list. Direct conversations are resolved deterministically
// per unordered participant pair; groups are created explicitly.
type ConversationService struct {
	convRepo      *repository.ConversationRepo
	userRepo      *repository.UserRepo
	recipientRepo *repository.RecipientRepo
	repos         *repository.Repositories
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo:      repos.Conversation,
		userRepo:      repos.User,
		recipientRepo: repos.Recipient,
		repos:         repos,
	}
}

// requireActiveUsers verifies every id maps to an active user
func (s *ConversationService) requireActiveUsers(ctx context.Context, userIds []string) ([]*entity.User, error) {
	users, err := s.userRepo.GetActiveByIds(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "load participants failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if len(users) != len(userIds) {
		return nil, errcode.ErrParticipantNotFound
	}
	return users, nil
}

// ResolveDirect finds or creates the unique direct conversation between two
// users. Safe to call repeatedly with the pair in either order. A concurrent
// create racing on the same pair loses on the direct_key unique index and
// resolves to the winner's conversation.
func (s *ConversationService) ResolveDirect(ctx context.Context, userA, userB string) (*entity.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, errcode.ErrInvalidParam
	}

	if _, err := s.requireActiveUsers(ctx, []string{userA, userB}); err != nil {
		return nil, err
	}

	directKey := entity.DirectPairKey(userA, userB)

	conv, err := s.convRepo.GetByDirectKey(ctx, directKey)
	if err != nil {
		log.CtxError(ctx, "lookup direct conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if conv != nil {
		return conv, nil
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate conversation id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	conv = &entity.Conversation{
		Id:        id,
		IsGroup:   false,
		DirectKey: &directKey,
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		return s.convRepo.CreateWithParticipants(ctx, tx, conv, []string{userA, userB})
	})
	if err == repository.ErrDuplicateDirectKey {
		// Lost the race; the winner's row is now visible.
		winner, readErr := s.convRepo.GetByDirectKey(ctx, directKey)
		if readErr != nil || winner == nil {
			return nil, errcode.ErrConversationExists
		}
		log.CtxInfo(ctx, "direct conversation race resolved: direct_key=%s, id=%s", directKey, winner.Id)
		return winner, nil
	}
	if err != nil {
		log.CtxError(ctx, "create direct conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "direct conversation created: id=%s, direct_key=%s", conv.Id, directKey)
	return conv, nil
}

// CreateGroup creates a group conversation for creatorId plus the given
// participants. Duplicate ids are collapsed; every id must name an active
// user. The stored name stays empty unless the creator supplied one; display
// labels for unnamed groups are synthesized at query time.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorId string, participantIds []string, name string) (*entity.Conversation, error) {
	seen := make(map[string]struct{}, len(participantIds)+1)
	members := make([]string, 0, len(participantIds)+1)
	for _, id := range append([]string{creatorId}, participantIds...) {
		if id == "" {
			return nil, errcode.ErrInvalidParam
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	if len(members) < 2 {
		return nil, errcode.ErrTooFewParticipants
	}

	if _, err := s.requireActiveUsers(ctx, members); err != nil {
		return nil, err
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate conversation id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	conv := &entity.Conversation{
		Id:      id,
		IsGroup: true,
	}
	if name != "" {
		conv.Name = &name
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		return s.convRepo.CreateWithParticipants(ctx, tx, conv, members)
	})
	if err != nil {
		log.CtxError(ctx, "create group conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "group conversation created: id=%s, members=%d", conv.Id, len(members))
	return conv, nil
}

// GetParticipantIds returns all participant ids of a conversation
func (s *ConversationService) GetParticipantIds(ctx context.Context, conversationId string) ([]string, error) {
	ids, err := s.convRepo.GetParticipantIds(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get participants failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	return ids, nil
}

// GetUserConversations returns one page of a user's conversation list with
// last-message preview and unread count per conversation, newest first.
func (s *ConversationService) GetUserConversations(ctx context.Context, userId string, limit, offset int) ([]*entity.ConversationSummary, error) {
	rows, err := s.convRepo.ListForUser(ctx, userId, limit, offset)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	convIds := make([]string, 0, len(rows))
	for _, row := range rows {
		convIds = append(convIds, row.Id)
	}

	participantsByConv, err := s.convRepo.GetParticipantsForConversations(ctx, convIds)
	if err != nil {
		log.CtxError(ctx, "load conversation participants failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		infos := make([]*entity.UserInfo, 0, len(participantsByConv[row.Id]))
		for _, u := range participantsByConv[row.Id] {
			infos = append(infos, u.ToUserInfo())
		}

		summary := &entity.ConversationSummary{
			Id:          row.Id,
			IsGroup:     row.IsGroup,
			UnreadCount: row.UnreadCount,
		}
		if row.LastMessage != nil {
			summary.LastMessage = *row.LastMessage
		}
		if row.LastMessageTime != nil {
			summary.LastMessageTime = *row.LastMessageTime
		}

		if row.IsGroup {
			summary.Name = displayName(row.Name, infos, userId)
			summary.Participants = othersOf(infos, userId)
		} else if other := firstOther(infos, userId); other != nil {
			summary.OtherUserId = other.Id
			summary.OtherUserName = other.Name
		}

		result = append(result, summary)
	}

	return result, nil
}

// displayName picks the stored name or falls back to a label computed from
// the other participants' names.
func displayName(stored *string, participants []*entity.UserInfo, viewerId string) string {
	if stored != nil && *stored != "" {
		return *stored
	}
	return entity.FallbackConversationName(participants, viewerId)
}

// othersOf filters the viewer out of a participant list
func othersOf(participants []*entity.UserInfo, viewerId string) []*entity.UserInfo {
	others := make([]*entity.UserInfo, 0, len(participants))
	for _, p := range participants {
		if p.Id != viewerId {
			others = append(others, p)
		}
	}
	return others
}

// firstOther returns the first participant that is not the viewer
func firstOther(participants []*entity.UserInfo, viewerId string) *entity.UserInfo {
	for _, p := range participants {
		if p.Id != viewerId {
			return p
		}
	}
	return nil
}
