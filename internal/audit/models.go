package audit

import (
	"time"

	id "doccontrol/pkg/domain"
)

// Action is the audit taxonomy string recorded for every state change.
type Action string

const (
	ActionDocumentCreated         Action = "DOCUMENT_CREATED"
	ActionDocumentVersionCreated  Action = "DOCUMENT_VERSION_CREATED"
	ActionDocumentUpdated         Action = "DOCUMENT_UPDATED"
	ActionSignatureCaptured       Action = "SIGNATURE_CAPTURED"
	ActionSignatureRejected       Action = "SIGNATURE_REJECTED"
	ActionWorkflowTemplateCreated Action = "WORKFLOW_TEMPLATE_CREATED"
	ActionDocumentTypeCreated     Action = "DOCUMENT_TYPE_CREATED"
	ActionUserCreated             Action = "USER_CREATED"
	ActionUserUpdated             Action = "USER_UPDATED"
)

// EntityType names the aggregate an event is anchored to.
type EntityType string

const (
	EntityDocument        EntityType = "DOCUMENT"
	EntityDocumentVersion EntityType = "DOCUMENT_VERSION"
	EntityUser            EntityType = "USER"
	EntityConfig          EntityType = "CONFIG"
)

// Event is one immutable record of a state-changing action. It is the sole
// legally significant record of "what happened": rows are appended inside the
// same atomic unit as the mutation they describe and never updated or deleted.
//
// ActorID is nil for system-initiated actions.
type Event struct {
	ID         id.EventID
	ActorID    *id.UserID
	Action     Action
	EntityType EntityType
	EntityID   string

	// Optional cross-references so the trail can be filtered per aggregate.
	DocumentID        *id.DocumentID
	DocumentVersionID *id.DocumentVersionID
	WorkflowRunID     *id.RunID

	Metadata  map[string]any
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
