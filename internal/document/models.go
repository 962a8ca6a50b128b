package document

import (
	"time"

	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// Category classifies a controlled document by business area.
type Category string

const (
	CategoryQuality       Category = "QUALITY"
	CategoryManufacturing Category = "MANUFACTURING"
	CategoryLab           Category = "LAB"
	CategoryOperations    Category = "OPERATIONS"
	CategorySafety        Category = "SAFETY"
	CategoryRegulatory    Category = "REGULATORY"
	CategoryValidation    Category = "VALIDATION"
	CategoryTraining      Category = "TRAINING"
	CategorySupplier      Category = "SUPPLIER"
	CategoryOther         Category = "OTHER"
)

var validCategories = map[Category]struct{}{
	CategoryQuality: {}, CategoryManufacturing: {}, CategoryLab: {},
	CategoryOperations: {}, CategorySafety: {}, CategoryRegulatory: {},
	CategoryValidation: {}, CategoryTraining: {}, CategorySupplier: {}, CategoryOther: {},
}

func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if _, ok := validCategories[c]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown document category %q", raw)
	}
	return c, nil
}

// Security is the document's access classification.
type Security string

const (
	SecurityConfidential Security = "CONFIDENTIAL"
	SecurityInternal     Security = "INTERNAL"
	SecurityRestricted   Security = "RESTRICTED"
	SecurityPublic       Security = "PUBLIC"
)

var validSecurities = map[Security]struct{}{
	SecurityConfidential: {}, SecurityInternal: {}, SecurityRestricted: {}, SecurityPublic: {},
}

func ParseSecurity(raw string) (Security, error) {
	s := Security(raw)
	if _, ok := validSecurities[s]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown security level %q", raw)
	}
	return s, nil
}

// Status is the document's approval status.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusInReview  Status = "IN_REVIEW"
	StatusApproved  Status = "APPROVED"
	StatusEffective Status = "EFFECTIVE"
	StatusRetired   Status = "RETIRED"
	StatusArchived  Status = "ARCHIVED"
)

var validStatuses = map[Status]struct{}{
	StatusDraft: {}, StatusInReview: {}, StatusApproved: {},
	StatusEffective: {}, StatusRetired: {}, StatusArchived: {},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := validStatuses[s]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown document status %q", raw)
	}
	return s, nil
}

// LifecycleState tracks where the document sits in its controlled lifecycle,
// independently of the approval status field.
type LifecycleState string

const (
	LifecycleDraft           LifecycleState = "DRAFT"
	LifecycleInReview        LifecycleState = "IN_REVIEW"
	LifecyclePendingApproval LifecycleState = "PENDING_APPROVAL"
	LifecycleEffective       LifecycleState = "EFFECTIVE"
	LifecycleUnderRevision   LifecycleState = "UNDER_REVISION"
	LifecycleObsolete        LifecycleState = "OBSOLETE"
)

var validLifecycleStates = map[LifecycleState]struct{}{
	LifecycleDraft: {}, LifecycleInReview: {}, LifecyclePendingApproval: {},
	LifecycleEffective: {}, LifecycleUnderRevision: {}, LifecycleObsolete: {},
}

func ParseLifecycleState(raw string) (LifecycleState, error) {
	s := LifecycleState(raw)
	if _, ok := validLifecycleStates[s]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown lifecycle state %q", raw)
	}
	return s, nil
}

// Document is the aggregate root for a controlled record.
//
// Invariants:
//   - Number is unique across documents
//   - CurrentVersionID points at the single non-superseded version once one exists
//   - Status/LifecycleState only change through CreateVersion, UpdateDocument
//     (administrative override) or workflow finalization
type Document struct {
	ID               id.DocumentID
	Title            string
	Number           string
	Category         Category
	Security         Security
	TypeID           id.DocumentTypeID
	Status           Status
	LifecycleState   LifecycleState
	CurrentVersionID *id.DocumentVersionID
	EffectiveFrom    *time.Time
	NextIssueDate    *time.Time
	CreatedBy        id.UserID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Version is one immutable revision of a document's content and metadata.
// Exactly one version per document has IsSuperseded=false at any time.
type Version struct {
	ID            id.DocumentVersionID
	DocumentID    id.DocumentID
	VersionLabel  string
	IssueDate     *time.Time
	EffectiveFrom *time.Time
	NextIssueDate *time.Time
	IssuerRole    identity.Role
	Status        Status
	IsSuperseded  bool
	Summary       string
	ChangeNote    string
	Content       string
	CreatedBy     id.UserID
	IssuedBy      id.UserID
	CreatedAt     time.Time
}

// Type is reference data describing a kind of controlled document.
type Type struct {
	ID          id.DocumentTypeID
	Name        string
	Description string
	CreatedAt   time.Time
}
