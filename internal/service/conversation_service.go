package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vgc-community/board-backend/internal/model"
	"github.com/vgc-community/board-backend/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("conversation not found")
	ErrPeerNotFound     = errors.New("peer not found")
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrNotParticipant   = errors.New("not a participant of this conversation")
	ErrPeerLeft         = errors.New("peer has left the conversation")
	ErrEmptyContent     = errors.New("content is required")
	ErrConflict         = errors.New("conversation was modified concurrently")
)

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ID           uint64    `json:"id"`
	PeerNickname string    `json:"otherNickname"`
	LastMessage  string    `json:"lastMessage"`
	UpdatedAt    time.Time `json:"updatedAt"`
	PeerLeft     bool      `json:"otherLeft"`
}

type ConversationService interface {
	StartOrResume(ctx context.Context, user *model.User, peerNickname string) (*model.Conversation, error)
	ListActive(ctx context.Context, user *model.User) ([]ConversationSummary, error)
	Conversation(ctx context.Context, convID uint64, user *model.User) (*model.Conversation, error)
	Messages(ctx context.Context, convID uint64, user *model.User) ([]model.Message, error)
	SendMessage(ctx context.Context, convID uint64, sender *model.User, content string) (*model.Message, error)
	Leave(ctx context.Context, convID uint64, user *model.User) error
}

type conversationService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
}

func NewConversationService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, userRepo repository.UserRepository) ConversationService {
	return &conversationService{convRepo: convRepo, msgRepo: msgRepo, userRepo: userRepo}
}

// StartOrResume finds or creates the conversation between user and the peer
// named by nickname. If user had left an existing conversation, their side is
// reopened; the peer's flag is never touched. The call is idempotent when
// user's side is already open.
func (s *conversationService) StartOrResume(ctx context.Context, user *model.User, peerNickname string) (*model.Conversation, error) {
	peer, err := s.userRepo.FindByNickname(ctx, strings.TrimSpace(peerNickname))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeerNotFound
		}
		return nil, err
	}
	if peer.ID == user.ID {
		return nil, ErrSelfConversation
	}

	aID, bID := model.NormalizePair(user.ID, peer.ID)

	cv, err := s.convRepo.FindByPair(ctx, aID, bID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cv = &model.Conversation{UserAID: aID, UserBID: bID}
		if err := s.convRepo.Create(ctx, cv); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the insert race; the winner's row is the pair's row.
				return s.resume(ctx, aID, bID, user.ID)
			}
			return nil, err
		}
		return cv, nil
	}
	if err != nil {
		return nil, err
	}
	return s.reopenIfLeft(ctx, cv, user.ID)
}

func (s *conversationService) resume(ctx context.Context, aID, bID, userID uint64) (*model.Conversation, error) {
	cv, err := s.convRepo.FindByPair(ctx, aID, bID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return s.reopenIfLeft(ctx, cv, userID)
}

func (s *conversationService) reopenIfLeft(ctx context.Context, cv *model.Conversation, userID uint64) (*model.Conversation, error) {
	if !cv.LeftFor(userID) {
		return cv, nil
	}
	aLeft, bLeft := cv.FlagsAfterRejoin(userID)
	if err := s.convRepo.SetLeftFlags(ctx, cv, aLeft, bLeft, nil); err != nil {
		if errors.Is(err, repository.ErrStaleConversation) {
			return nil, ErrConflict
		}
		return nil, err
	}
	cv.UserALeft, cv.UserBLeft = aLeft, bLeft
	return cv, nil
}

// ListActive returns the conversations whose own side is still open for
// user, newest activity first.
func (s *conversationService) ListActive(ctx context.Context, user *model.User) ([]ConversationSummary, error) {
	convs, err := s.convRepo.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	summaries := make([]ConversationSummary, 0, len(convs))
	for _, cv := range convs {
		peer, err := s.userRepo.FindByID(ctx, cv.PeerID(user.ID))
		if err != nil {
			return nil, err
		}
		last, err := s.msgRepo.FindLast(ctx, cv.ID)
		if err != nil {
			return nil, err
		}
		lastContent := ""
		if last != nil {
			lastContent = last.Content
		}
		summaries = append(summaries, ConversationSummary{
			ID:           cv.ID,
			PeerNickname: peer.Nickname,
			LastMessage:  lastContent,
			UpdatedAt:    cv.UpdatedAt,
			PeerLeft:     cv.PeerLeft(user.ID),
		})
	}
	return summaries, nil
}

// Conversation loads the conversation and verifies that user participates.
func (s *conversationService) Conversation(ctx context.Context, convID uint64, user *model.User) (*model.Conversation, error) {
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !cv.HasParticipant(user.ID) {
		return nil, ErrNotParticipant
	}
	return cv, nil
}

func (s *conversationService) Messages(ctx context.Context, convID uint64, user *model.User) ([]model.Message, error) {
	if _, err := s.Conversation(ctx, convID, user); err != nil {
		return nil, err
	}
	return s.msgRepo.ListByConversation(ctx, convID)
}

// SendMessage persists a message from sender. Sending is refused while the
// peer's side is marked left; the peer reopens the channel by calling
// StartOrResume. The caller is responsible for broadcasting the returned
// message to the conversation's topic.
func (s *conversationService) SendMessage(ctx context.Context, convID uint64, sender *model.User, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	cv, err := s.Conversation(ctx, convID, sender)
	if err != nil {
		return nil, err
	}
	if cv.PeerLeft(sender.ID) {
		return nil, ErrPeerLeft
	}
	senderID := sender.ID
	nickname := sender.Nickname
	msg := &model.Message{
		ConversationID: convID,
		SenderID:       &senderID,
		SenderNickname: &nickname,
		Content:        content,
	}
	if err := s.convRepo.AppendMessage(ctx, cv, msg); err != nil {
		if errors.Is(err, repository.ErrStaleConversation) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return msg, nil
}

// Leave marks user's side as left and records a system message. When the
// other side had already left, the conversation and its entire history are
// torn down instead, in the same transaction as the flag change.
func (s *conversationService) Leave(ctx context.Context, convID uint64, user *model.User) error {
	cv, err := s.Conversation(ctx, convID, user)
	if err != nil {
		return err
	}
	aLeft, bLeft := cv.FlagsAfterLeave(user.ID)
	var sysMsg *model.Message
	if !(aLeft && bLeft) {
		sysMsg = &model.Message{
			ConversationID: convID,
			Content:        fmt.Sprintf("%s left the conversation", user.Nickname),
			IsSystem:       true,
		}
	}
	if err := s.convRepo.SetLeftFlags(ctx, cv, aLeft, bLeft, sysMsg); err != nil {
		if errors.Is(err, repository.ErrStaleConversation) {
			return ErrConflict
		}
		return err
	}
	return nil
}
