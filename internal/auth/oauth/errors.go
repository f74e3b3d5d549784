package oauth

import "errors"

var (
	ErrInvalidRequest       = errors.New("oauth: invalid request")
	ErrInvalidProvider      = errors.New("oauth: invalid provider")
	ErrProviderNotFound     = errors.New("oauth: provider not found")
	ErrProviderNotSupported = errors.New("oauth: provider not supported")
	ErrUnauthorized         = errors.New("oauth: unauthorized")
)
