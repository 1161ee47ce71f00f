package permission

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists permissions keyed by (user, token).
type Store interface {
	PutPermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, user, token common.Address) (*Permission, error)
	ListPermissions(ctx context.Context, user common.Address) ([]*Permission, error)
}
