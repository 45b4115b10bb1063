package repository

import (
	"context"
	"time"

	"github.com/vgc-community/board-backend/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	Create(ctx context.Context, cv *model.Conversation) error
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindByPair(ctx context.Context, userAID, userBID uint64) (*model.Conversation, error)
	FindActiveByUser(ctx context.Context, userID uint64) ([]model.Conversation, error)
	AppendMessage(ctx context.Context, cv *model.Conversation, msg *model.Message) error
	SetLeftFlags(ctx context.Context, cv *model.Conversation, aLeft, bLeft bool, sysMsg *model.Message) error
	SetDB(db *gorm.DB)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *conversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	cv.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(cv).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByPair(ctx context.Context, userAID, userBID uint64) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", userAID, userBID).
		First(&cv).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindActiveByUser(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Conversation
	if err := r.db.WithContext(ctx).
		Where("(user_a_id = ? AND user_a_left = ?) OR (user_b_id = ? AND user_b_left = ?)",
			userID, false, userID, false).
		Order("updated_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// guardedUpdate applies updates to the conversation row only if its
// left-flags still match the state in cv. The UPDATE holds the row lock for
// the rest of the transaction, so the insert that follows it cannot
// interleave with another mutation on the same conversation. Zero matched
// rows means cv was stale (or the row is gone).
func guardedUpdate(tx *gorm.DB, cv *model.Conversation, updates map[string]interface{}) error {
	res := tx.Model(&model.Conversation{}).
		Where("id = ? AND user_a_left = ? AND user_b_left = ?", cv.ID, cv.UserALeft, cv.UserBLeft).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleConversation
	}
	return nil
}

// AppendMessage persists msg and bumps the conversation's updated_at in one
// transaction, guarded by the left-flags the caller validated against.
func (r *conversationRepository) AppendMessage(ctx context.Context, cv *model.Conversation, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardedUpdate(tx, cv, map[string]interface{}{"updated_at": time.Now()}); err != nil {
			return err
		}
		return tx.Create(msg).Error
	})
}

// SetLeftFlags transitions the left-flag pair, optionally recording a system
// message. When both flags become true the conversation and all of its
// messages are removed in the same transaction; the cascade is never
// observable half-applied.
func (r *conversationRepository) SetLeftFlags(ctx context.Context, cv *model.Conversation, aLeft, bLeft bool, sysMsg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := guardedUpdate(tx, cv, map[string]interface{}{
			"user_a_left": aLeft,
			"user_b_left": bLeft,
			"updated_at":  time.Now(),
		})
		if err != nil {
			return err
		}
		if aLeft && bLeft {
			if err := tx.Where("conversation_id = ?", cv.ID).Delete(&model.Message{}).Error; err != nil {
				return err
			}
			return tx.Delete(&model.Conversation{}, cv.ID).Error
		}
		if sysMsg != nil {
			return tx.Create(sysMsg).Error
		}
		return nil
	})
}
