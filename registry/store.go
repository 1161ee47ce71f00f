package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists administrative state.
type Store interface {
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error

	// AddSupportedToken and RemoveSupportedToken are idempotent.
	AddSupportedToken(ctx context.Context, t *SupportedToken) error
	RemoveSupportedToken(ctx context.Context, token common.Address) error
	IsSupportedToken(ctx context.Context, token common.Address) (bool, error)
	ListSupportedTokens(ctx context.Context) ([]*SupportedToken, error)
}
