package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/requestcontext"
)

type createDocumentRequest struct {
	Title         string     `json:"title"`
	Number        string     `json:"number"`
	Category      string     `json:"category"`
	Security      string     `json:"security"`
	TypeID        string     `json:"typeId"`
	TemplateID    string     `json:"templateId,omitempty"`
	VersionLabel  string     `json:"versionLabel,omitempty"`
	Content       string     `json:"content,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	NextIssueDate *time.Time `json:"nextIssueDate,omitempty"`
}

type documentResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Number           string     `json:"number"`
	Category         string     `json:"category"`
	Security         string     `json:"security"`
	TypeID           string     `json:"typeId"`
	Status           string     `json:"status"`
	LifecycleState   string     `json:"lifecycleState"`
	CurrentVersionID string     `json:"currentVersionId,omitempty"`
	EffectiveFrom    *time.Time `json:"effectiveFrom,omitempty"`
	NextIssueDate    *time.Time `json:"nextIssueDate,omitempty"`
	CreatedBy        string     `json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toDocumentResponse(doc *document.Document) documentResponse {
	resp := documentResponse{
		ID:             doc.ID.String(),
		Title:          doc.Title,
		Number:         doc.Number,
		Category:       string(doc.Category),
		Security:       string(doc.Security),
		TypeID:         doc.TypeID.String(),
		Status:         string(doc.Status),
		LifecycleState: string(doc.LifecycleState),
		EffectiveFrom:  doc.EffectiveFrom,
		NextIssueDate:  doc.NextIssueDate,
		CreatedBy:      doc.CreatedBy.String(),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.CurrentVersionID != nil {
		resp.CurrentVersionID = doc.CurrentVersionID.String()
	}
	return resp
}

type versionResponse struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	VersionLabel string    `json:"versionLabel"`
	IssuerRole   string    `json:"issuerRole"`
	Status       string    `json:"status"`
	IsSuperseded bool      `json:"isSuperseded"`
	Summary      string    `json:"summary,omitempty"`
	ChangeNote   string    `json:"changeNote,omitempty"`
	Content      string    `json:"content,omitempty"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toVersionResponse(version *document.Version) versionResponse {
	return versionResponse{
		ID:           version.ID.String(),
		DocumentID:   version.DocumentID.String(),
		VersionLabel: version.VersionLabel,
		IssuerRole:   string(version.IssuerRole),
		Status:       string(version.Status),
		IsSuperseded: version.IsSuperseded,
		Summary:      version.Summary,
		ChangeNote:   version.ChangeNote,
		Content:      version.Content,
		CreatedBy:    version.CreatedBy.String(),
		CreatedAt:    version.CreatedAt,
	}
}

func actorFrom(r *http.Request) (id.UserID, identity.Role, error) {
	actor := requestcontext.ActorID(r.Context())
	role, err := identity.ParseRole(requestcontext.ActorRole(r.Context()))
	if err != nil {
		return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "actor role is unknown")
	}
	return actor, role, nil
}

func (h *handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor, role, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	typeID, err := id.ParseDocumentTypeID(req.TypeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	input := document.CreateDocumentInput{
		Title:         req.Title,
		Number:        req.Number,
		Category:      req.Category,
		Security:      req.Security,
		TypeID:        typeID,
		VersionLabel:  req.VersionLabel,
		Content:       req.Content,
		Summary:       req.Summary,
		EffectiveFrom: req.EffectiveFrom,
		NextIssueDate: req.NextIssueDate,
	}
	if req.TemplateID != "" {
		templateID, err := id.ParseTemplateID(req.TemplateID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		input.TemplateID = &templateID
	}

	doc, err := h.deps.Documents.CreateDocument(r.Context(), input, actor, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.deps.Documents.ListDocuments(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toDocumentResponse(doc))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	aggregate, err := h.deps.View.GetDocument(r.Context(), documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAggregateResponse(aggregate))
}

type createVersionRequest struct {
	VersionLabel  string     `json:"versionLabel"`
	Content       string     `json:"content,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	ChangeNote    string     `json:"changeNote,omitempty"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	NextIssueDate *time.Time `json:"nextIssueDate,omitempty"`
}

func (h *handler) createVersion(w http.ResponseWriter, r *http.Request) {
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor, role, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	version, err := h.deps.Documents.CreateVersion(r.Context(), documentID, document.CreateVersionInput{
		VersionLabel:  req.VersionLabel,
		Content:       req.Content,
		Summary:       req.Summary,
		ChangeNote:    req.ChangeNote,
		EffectiveFrom: req.EffectiveFrom,
		NextIssueDate: req.NextIssueDate,
	}, actor, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVersionResponse(version))
}

type updateDocumentRequest struct {
	Title          *string    `json:"title,omitempty"`
	Category       *string    `json:"category,omitempty"`
	Security       *string    `json:"security,omitempty"`
	Status         *string    `json:"status,omitempty"`
	LifecycleState *string    `json:"lifecycleState,omitempty"`
	EffectiveFrom  *time.Time `json:"effectiveFrom,omitempty"`
	NextIssueDate  *time.Time `json:"nextIssueDate,omitempty"`
}

func (h *handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor := requestcontext.ActorID(r.Context())

	doc, err := h.deps.Documents.UpdateDocument(r.Context(), documentID, document.UpdateDocumentPatch{
		Title:          req.Title,
		Category:       req.Category,
		Security:       req.Security,
		Status:         req.Status,
		LifecycleState: req.LifecycleState,
		EffectiveFrom:  req.EffectiveFrom,
		NextIssueDate:  req.NextIssueDate,
	}, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}
