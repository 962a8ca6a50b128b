package document

import (
	"context"

	id "doccontrol/pkg/domain"
)

// Store persists documents. CreateIfNumberAvailable enforces document-number
// uniqueness atomically.
type Store interface {
	CreateIfNumberAvailable(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, documentID id.DocumentID) (*Document, error)
	Update(ctx context.Context, doc *Document) error
	List(ctx context.Context) ([]*Document, error)
}

// VersionStore persists document versions. SupersedeOthers is the only write
// that mutates IsSuperseded: it marks every version of the document except
// keep as superseded.
type VersionStore interface {
	Create(ctx context.Context, version *Version) error
	FindByID(ctx context.Context, versionID id.DocumentVersionID) (*Version, error)
	SupersedeOthers(ctx context.Context, documentID id.DocumentID, keep id.DocumentVersionID) error
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*Version, error)
}

// TypeStore persists document type reference data.
type TypeStore interface {
	CreateIfNameAvailable(ctx context.Context, docType *Type) error
	FindByID(ctx context.Context, typeID id.DocumentTypeID) (*Type, error)
	List(ctx context.Context) ([]*Type, error)
}
