package model

import "time"

type User struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FirebaseUID string    `gorm:"column:firebase_uid;size:128;uniqueIndex" json:"-"`
	Nickname    string    `gorm:"size:64;uniqueIndex" json:"nickname"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
