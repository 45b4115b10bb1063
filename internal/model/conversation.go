package model

import "time"

// Conversation is the single row covering an unordered pair of users.
// The pair is stored in canonical order (UserAID < UserBID) so that the
// composite unique index makes the pair unique regardless of who initiated.
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAID   uint64    `gorm:"column:user_a_id;index:idx_conv_pair,unique" json:"userAId"`
	UserBID   uint64    `gorm:"column:user_b_id;index:idx_conv_pair,unique" json:"userBId"`
	UserALeft bool      `gorm:"column:user_a_left;not null;default:false" json:"userALeft"`
	UserBLeft bool      `gorm:"column:user_b_left;not null;default:false" json:"userBLeft"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// NormalizePair returns the two ids in canonical storage order.
func NormalizePair(x, y uint64) (a, b uint64) {
	if x < y {
		return x, y
	}
	return y, x
}

func (c *Conversation) HasParticipant(userID uint64) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// PeerID returns the other side of the pair. Callers must have checked
// participancy first.
func (c *Conversation) PeerID(userID uint64) uint64 {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// LeftFor reports whether the given participant's own side is marked left.
func (c *Conversation) LeftFor(userID uint64) bool {
	if c.UserAID == userID {
		return c.UserALeft
	}
	return c.UserBLeft
}

// PeerLeft reports whether the other side is marked left.
func (c *Conversation) PeerLeft(userID uint64) bool {
	if c.UserAID == userID {
		return c.UserBLeft
	}
	return c.UserALeft
}

// FlagsAfterLeave returns the left-flag pair after userID leaves.
func (c *Conversation) FlagsAfterLeave(userID uint64) (aLeft, bLeft bool) {
	aLeft, bLeft = c.UserALeft, c.UserBLeft
	if c.UserAID == userID {
		aLeft = true
	} else {
		bLeft = true
	}
	return aLeft, bLeft
}

// FlagsAfterRejoin returns the left-flag pair after userID rejoins.
func (c *Conversation) FlagsAfterRejoin(userID uint64) (aLeft, bLeft bool) {
	aLeft, bLeft = c.UserALeft, c.UserBLeft
	if c.UserAID == userID {
		aLeft = false
	} else {
		bLeft = false
	}
	return aLeft, bLeft
}
