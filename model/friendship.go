package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Friendship is the undirected edge created when an invitation is
// accepted. UserAID/UserBID are stored in canonical order so (A,B) and
// (B,A) are the same row; the unique PairKey makes double creation a
// constraint violation rather than silent divergence.
type Friendship struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	PairKey   string    `gorm:"uniqueIndex;size:73;not null" json:"-"`
	UserAID   uuid.UUID `gorm:"type:char(36);index;not null" json:"user_a_id"`
	UserBID   uuid.UUID `gorm:"type:char(36);index;not null" json:"user_b_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.UserAID, f.UserBID = OrderPair(f.UserAID, f.UserBID)
	if f.PairKey == "" {
		f.PairKey = PairKey(f.UserAID, f.UserBID)
	}
	return nil
}

// Other returns the endpoint that is not the given user. The caller
// never needs to know which side the user was stored on.
func (f *Friendship) Other(userID uuid.UUID) uuid.UUID {
	if f.UserAID == userID {
		return f.UserBID
	}
	return f.UserAID
}
