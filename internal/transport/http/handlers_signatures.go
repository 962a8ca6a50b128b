package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"doccontrol/internal/signature"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
)

type applySignatureRequest struct {
	StepID     string `json:"stepId,omitempty"`
	Purpose    string `json:"purpose"`
	Credential string `json:"credential"`
	Comment    string `json:"comment,omitempty"`
}

type signatureResponse struct {
	ID                string         `json:"id"`
	DocumentVersionID string         `json:"documentVersionId"`
	UserID            string         `json:"userId"`
	Purpose           string         `json:"purpose"`
	WorkflowStepID    string         `json:"workflowStepId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	SignedAt          time.Time      `json:"signedAt"`
}

func toSignatureResponse(sig *signature.ElectronicSignature) signatureResponse {
	resp := signatureResponse{
		ID:                sig.ID.String(),
		DocumentVersionID: sig.DocumentVersionID.String(),
		UserID:            sig.UserID.String(),
		Purpose:           string(sig.Purpose),
		Metadata:          sig.Metadata,
		SignedAt:          sig.SignedAt,
	}
	if sig.WorkflowStepID != nil {
		resp.WorkflowStepID = sig.WorkflowStepID.String()
	}
	return resp
}

func (h *handler) applySignature(w http.ResponseWriter, r *http.Request) {
	versionID, err := id.ParseDocumentVersionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req applySignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor, role, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	input := signature.SubmitInput{
		VersionID:  versionID,
		Purpose:    req.Purpose,
		Credential: req.Credential,
		Comment:    req.Comment,
	}
	if req.StepID != "" {
		stepID, err := id.ParseStepID(req.StepID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		input.StepID = &stepID
	}

	sig, err := h.deps.Gate.Submit(r.Context(), input, actor, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSignatureResponse(sig))
}
