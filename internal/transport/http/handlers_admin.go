package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/requestcontext"
)

const defaultAuditLimit = 50

func (h *handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.deps.Audit.List(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	resp := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, toAuditEventResponse(event))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type createTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type typeResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTypeResponse(docType *document.Type) typeResponse {
	return typeResponse{
		ID:          docType.ID.String(),
		Name:        docType.Name,
		Description: docType.Description,
		CreatedAt:   docType.CreatedAt,
	}
}

func (h *handler) createType(w http.ResponseWriter, r *http.Request) {
	var req createTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	docType, err := h.deps.Documents.CreateType(r.Context(), document.CreateTypeInput{
		Name:        req.Name,
		Description: req.Description,
	}, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTypeResponse(docType))
}

func (h *handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.deps.Documents.ListTypes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]typeResponse, 0, len(types))
	for _, docType := range types {
		resp = append(resp, toTypeResponse(docType))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	IsActive *bool   `json:"isActive,omitempty"`
	Role     *string `json:"role,omitempty"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(user *identity.User) userResponse {
	return userResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := h.deps.Identities.CreateUser(r.Context(), identity.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := h.deps.Identities.UpdateUser(r.Context(), userID, identity.UpdateUserInput{
		IsActive: req.IsActive,
		Role:     req.Role,
	}, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Identities.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
