package signature

import (
	"time"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// Purpose states what a signature attests to.
type Purpose string

const (
	PurposeAuthorship      Purpose = "AUTHORSHIP"
	PurposeReview          Purpose = "REVIEW"
	PurposeApproval        Purpose = "APPROVAL"
	PurposeEffectivity     Purpose = "EFFECTIVITY"
	PurposeAcknowledgement Purpose = "ACKNOWLEDGEMENT"
)

var validPurposes = map[Purpose]struct{}{
	PurposeAuthorship: {}, PurposeReview: {}, PurposeApproval: {},
	PurposeEffectivity: {}, PurposeAcknowledgement: {},
}

func ParsePurpose(raw string) (Purpose, error) {
	p := Purpose(raw)
	if _, ok := validPurposes[p]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown signature purpose %q", raw)
	}
	return p, nil
}

// ElectronicSignature is an append-only attestation record. SignatureHash is
// a binding token derived from signer id, version id and submission time; it
// is an attestation marker, not a content digest, and is never re-verified.
type ElectronicSignature struct {
	ID                id.SignatureID
	DocumentVersionID id.DocumentVersionID
	UserID            id.UserID
	Purpose           Purpose
	SignatureHash     string
	WorkflowStepID    *id.StepID
	Metadata          map[string]any
	SignedAt          time.Time
}
