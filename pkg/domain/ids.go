// Package domain holds typed identifiers shared by every component. Wrapping
// uuid.UUID in distinct types makes cross-aggregate assignment a compile error.
package domain

import (
	"github.com/google/uuid"

	dErrors "doccontrol/pkg/domain-errors"
)

type (
	// UserID identifies a signer or administrator account.
	UserID uuid.UUID
	// DocumentID identifies a controlled document.
	DocumentID uuid.UUID
	// DocumentVersionID identifies one immutable revision of a document.
	DocumentVersionID uuid.UUID
	// DocumentTypeID identifies a reference document type.
	DocumentTypeID uuid.UUID
	// TemplateID identifies a workflow template.
	TemplateID uuid.UUID
	// TemplateStepID identifies one declarative step of a template.
	TemplateStepID uuid.UUID
	// RunID identifies one workflow run instantiated against a document.
	RunID uuid.UUID
	// StepID identifies one role-gated checkpoint within a run.
	StepID uuid.UUID
	// SignatureID identifies an electronic signature record.
	SignatureID uuid.UUID
	// EventID identifies an audit event.
	EventID uuid.UUID
)

func (id UserID) String() string            { return uuid.UUID(id).String() }
func (id DocumentID) String() string        { return uuid.UUID(id).String() }
func (id DocumentVersionID) String() string { return uuid.UUID(id).String() }
func (id DocumentTypeID) String() string    { return uuid.UUID(id).String() }
func (id TemplateID) String() string        { return uuid.UUID(id).String() }
func (id TemplateStepID) String() string    { return uuid.UUID(id).String() }
func (id RunID) String() string             { return uuid.UUID(id).String() }
func (id StepID) String() string            { return uuid.UUID(id).String() }
func (id SignatureID) String() string       { return uuid.UUID(id).String() }
func (id EventID) String() string           { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DocumentVersionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentTypeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id RunID) IsNil() bool             { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id SignatureID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user")
	return UserID(u), err
}

func ParseDocumentID(raw string) (DocumentID, error) {
	u, err := parseUUID(raw, "document")
	return DocumentID(u), err
}

func ParseDocumentVersionID(raw string) (DocumentVersionID, error) {
	u, err := parseUUID(raw, "document version")
	return DocumentVersionID(u), err
}

func ParseDocumentTypeID(raw string) (DocumentTypeID, error) {
	u, err := parseUUID(raw, "document type")
	return DocumentTypeID(u), err
}

func ParseTemplateID(raw string) (TemplateID, error) {
	u, err := parseUUID(raw, "workflow template")
	return TemplateID(u), err
}

func ParseRunID(raw string) (RunID, error) {
	u, err := parseUUID(raw, "workflow run")
	return RunID(u), err
}

func ParseStepID(raw string) (StepID, error) {
	u, err := parseUUID(raw, "workflow step")
	return StepID(u), err
}

// NewUserID and friends mint fresh identifiers. Kept as functions so call
// sites read as intent rather than as uuid plumbing.
func NewUserID() UserID                       { return UserID(uuid.New()) }
func NewDocumentID() DocumentID               { return DocumentID(uuid.New()) }
func NewDocumentVersionID() DocumentVersionID { return DocumentVersionID(uuid.New()) }
func NewDocumentTypeID() DocumentTypeID       { return DocumentTypeID(uuid.New()) }
func NewTemplateID() TemplateID               { return TemplateID(uuid.New()) }
func NewTemplateStepID() TemplateStepID       { return TemplateStepID(uuid.New()) }
func NewRunID() RunID                         { return RunID(uuid.New()) }
func NewStepID() StepID                       { return StepID(uuid.New()) }
func NewSignatureID() SignatureID             { return SignatureID(uuid.New()) }
func NewEventID() EventID                     { return EventID(uuid.New()) }
