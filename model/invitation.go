package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation status values.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRejected = "rejected"
)

// FriendInvitation is the directed edge of a friendship proposal.
// PairKey is direction-normalized and unique, so a pair can never hold
// two invitations at once, in either direction. A rejected invitation
// is flipped back to pending on re-proposal instead of inserting a new
// row; RequestorID/AddresseeID keep their original roles across that
// reactivation.
type FriendInvitation struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	PairKey     string    `gorm:"uniqueIndex;size:73;not null" json:"-"`
	RequestorID uuid.UUID `gorm:"type:char(36);index;not null" json:"requestor_id"`
	AddresseeID uuid.UUID `gorm:"type:char(36);index;not null" json:"addressee_id"`
	Status      string    `gorm:"size:16;not null;default:'pending'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *FriendInvitation) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.PairKey == "" {
		i.PairKey = PairKey(i.RequestorID, i.AddresseeID)
	}
	return nil
}
