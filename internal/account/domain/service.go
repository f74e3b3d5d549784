package domain

import (
	"context"
	"errors"
)

type CreateRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
}

type UpdateRequest struct {
	ID       string  `json:"-"`
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ListRequest struct {
	AccountType string `form:"account_type"`
	IsActive    *bool  `form:"is_active"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Account, error)
	List(ctx context.Context, req ListRequest) ([]Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	Update(ctx context.Context, req UpdateRequest) (Account, error)
	Deactivate(ctx context.Context, id string) (Account, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_account_id")
	ErrNotFound            = errors.New("account_not_found")
	ErrInvalidCode         = errors.New("invalid_account_code")
	ErrInvalidName         = errors.New("invalid_account_name")
	ErrInvalidType         = errors.New("invalid_account_type")
	ErrCodeTaken           = errors.New("account_code_taken")
)
