package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

var (
	ErrInvalidActor        = errors.New("authorization: invalid actor")
	ErrInvalidOrganization = errors.New("authorization: invalid organization")
	ErrInvalidObject       = errors.New("authorization: invalid object")
	ErrInvalidAction       = errors.New("authorization: invalid action")
	ErrForbidden           = errors.New("authorization: forbidden")
)

// Service answers whether an actor may perform an action on an object
// within an organization. Actors are "system", "user:<id>" or "api_key:<id>".
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
