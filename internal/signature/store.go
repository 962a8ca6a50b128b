package signature

import (
	"context"

	id "doccontrol/pkg/domain"
)

// Store persists electronic signatures. Signatures are created once and
// never mutated or deleted.
type Store interface {
	Create(ctx context.Context, sig *ElectronicSignature) error
	ListByVersion(ctx context.Context, versionID id.DocumentVersionID) ([]*ElectronicSignature, error)
}
