package friend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/amity/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision is the addressee's verdict on a pending invitation.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ProfileSummary is the public slice of a user record used to enrich
// invitation and friend listings.
type ProfileSummary struct {
	ID      uuid.UUID `json:"id"`
	Account string    `json:"account"`
	Mail    string    `json:"mail"`
	Name    string    `json:"name"`
	Avatar  string    `json:"avatar"`
}

// PendingInvitation is one entry of a user's inbox.
type PendingInvitation struct {
	ID        uuid.UUID      `json:"id"`
	Requestor ProfileSummary `json:"requestor"`
	CreatedAt time.Time      `json:"created_at"`
}

// Friend is one entry of a user's friend list.
type Friend struct {
	FriendshipID uuid.UUID      `json:"friendship_id"`
	User         ProfileSummary `json:"user"`
	Since        time.Time      `json:"since"`
}

// Service implements the invitation state machine and the friend list
// queries. All state lives in the database; every call reads current
// persisted rows, so concurrent workers coordinate only through the
// store's constraints and transactions.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a friend Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Propose records a friendship invitation from requestor to addressee.
//
// If no invitation exists for the unordered pair, a pending one is
// created. A previously rejected invitation is revived to pending in
// place, keeping its id and original direction, no matter which of the
// two users re-proposes. A pending or accepted invitation makes the
// call fail with ErrConflict.
//
// Two simultaneous proposals for the same pair race on the pair_key
// unique index: the loser's insert fails with a duplicate-key error,
// which is treated as "record exists" and re-runs the read-decide step
// once.
func (s *Service) Propose(ctx context.Context, requestorID, addresseeID uuid.UUID) (*model.FriendInvitation, error) {
	if requestorID == addresseeID {
		return nil, ErrSelfInvitation
	}

	var addressee model.User
	err := s.db.WithContext(ctx).First(&addressee, "id = ?", addresseeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownAddressee
	}
	if err != nil {
		return nil, err
	}

	key := model.PairKey(requestorID, addresseeID)
	for attempt := 0; attempt < 2; attempt++ {
		var inv model.FriendInvitation
		err := s.db.WithContext(ctx).First(&inv, "pair_key = ?", key).Error
		if err == nil {
			if inv.Status != model.InviteStatusRejected {
				return nil, ErrConflict
			}
			// Revive the rejected edge. The status guard makes the flip
			// atomic: of two users re-proposing at once, exactly one wins.
			res := s.db.WithContext(ctx).Model(&inv).
				Where("status = ?", model.InviteStatusRejected).
				Update("status", model.InviteStatusPending)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				return nil, ErrConflict
			}
			inv.Status = model.InviteStatusPending
			s.logger.Info("invitation revived",
				zap.String("invitation_id", inv.ID.String()),
				zap.String("requestor_id", requestorID.String()))
			return &inv, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		inv = model.FriendInvitation{
			RequestorID: requestorID,
			AddresseeID: addresseeID,
			Status:      model.InviteStatusPending,
		}
		err = s.db.WithContext(ctx).Create(&inv).Error
		if err == nil {
			s.logger.Info("invitation created",
				zap.String("invitation_id", inv.ID.String()),
				zap.String("requestor_id", requestorID.String()),
				zap.String("addressee_id", addresseeID.String()))
			return &inv, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		// Lost the insert race; the next pass sees the winner's row.
	}
	return nil, ErrConflict
}

// Resolve applies the addressee's decision to a pending invitation.
// Accepting creates the Friendship row in the same transaction as the
// status flip, so either both are committed or neither is. The
// pending-status guard on the UPDATE gives concurrent resolutions
// exactly one winner.
func (s *Service) Resolve(ctx context.Context, actingUserID, invitationID uuid.UUID, decision Decision) (*model.FriendInvitation, error) {
	var newStatus string
	switch decision {
	case DecisionAccept:
		newStatus = model.InviteStatusAccepted
	case DecisionReject:
		newStatus = model.InviteStatusRejected
	default:
		return nil, fmt.Errorf("friend: unknown decision %q", decision)
	}

	var inv model.FriendInvitation
	err := s.db.WithContext(ctx).First(&inv, "id = ?", invitationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if inv.AddresseeID != actingUserID {
		return nil, ErrForbidden
	}
	if inv.Status != model.InviteStatusPending {
		return nil, ErrInvalidState
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.FriendInvitation{}).
			Where("id = ? AND status = ?", inv.ID, model.InviteStatusPending).
			Update("status", newStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent resolution got there first.
			return ErrInvalidState
		}
		if decision == DecisionAccept {
			return tx.Create(&model.Friendship{
				UserAID: inv.RequestorID,
				UserBID: inv.AddresseeID,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Status = newStatus
	s.logger.Info("invitation resolved",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("decision", string(decision)))
	return &inv, nil
}

// ListPending returns the pending invitations addressed to the user,
// each enriched with the requestor's profile summary. Order is stable
// across calls against unchanged data.
func (s *Service) ListPending(ctx context.Context, userID uuid.UUID) ([]PendingInvitation, error) {
	var invs []model.FriendInvitation
	err := s.db.WithContext(ctx).
		Where("addressee_id = ? AND status = ?", userID, model.InviteStatusPending).
		Order("created_at, id").
		Find(&invs).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(invs))
	for i, inv := range invs {
		ids[i] = inv.RequestorID
	}
	profiles, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]PendingInvitation, 0, len(invs))
	for _, inv := range invs {
		result = append(result, PendingInvitation{
			ID:        inv.ID,
			Requestor: profiles[inv.RequestorID],
			CreatedAt: inv.CreatedAt,
		})
	}
	return result, nil
}

// ListFriends returns every user paired with the given user across all
// friendship rows, regardless of which side the user was stored on.
func (s *Service) ListFriends(ctx context.Context, userID uuid.UUID) ([]Friend, error) {
	var edges []model.Friendship
	err := s.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("created_at, id").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(edges))
	for i, e := range edges {
		ids[i] = e.Other(userID)
	}
	profiles, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]Friend, 0, len(edges))
	for _, e := range edges {
		result = append(result, Friend{
			FriendshipID: e.ID,
			User:         profiles[e.Other(userID)],
			Since:        e.CreatedAt,
		})
	}
	return result, nil
}

// summaries fetches profile summaries for the given user IDs in one
// query. Edges are resolved in two explicit steps (fetch edges, then
// fetch endpoints) instead of relying on ORM relationship loading.
func (s *Service) summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProfileSummary, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ProfileSummary{}, nil
	}
	var users []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	result := make(map[uuid.UUID]ProfileSummary, len(users))
	for _, u := range users {
		result[u.ID] = ProfileSummary{
			ID:      u.ID,
			Account: u.Account,
			Mail:    u.Mail,
			Name:    u.Name,
			Avatar:  u.Avatar,
		}
	}
	return result, nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
