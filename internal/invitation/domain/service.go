package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, invitedBy snowflake.ID, req CreateInviteRequest) (*InviteResponse, error)
	List(ctx context.Context) ([]InviteResponse, error)
	Accept(ctx context.Context, userID snowflake.ID, userEmail string, inviteID string) error
	Revoke(ctx context.Context, inviteID string) error
}

type CreateInviteRequest struct {
	Email string
	Role  string
}

type InviteResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidInvite       = errors.New("invalid_invite")
	ErrInviteNotFound      = errors.New("invite_not_found")
	ErrInviteNotPending    = errors.New("invite_not_pending")
	ErrInviteExpired       = errors.New("invite_expired")
	ErrEmailMismatch       = errors.New("email_mismatch")
	ErrAlreadyMember       = errors.New("already_member")
	ErrAlreadyInvited      = errors.New("already_invited")
)
