package http

import (
	"encoding/json"
	"net/http"
	"time"

	"doccontrol/internal/workflow"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/httputil"
	"doccontrol/pkg/requestcontext"
)

type createTemplateRequest struct {
	Name      string                `json:"name"`
	Category  string                `json:"category"`
	IsDefault bool                  `json:"isDefault"`
	Steps     []templateStepRequest `json:"steps"`
}

type templateStepRequest struct {
	Order            int    `json:"order,omitempty"`
	Role             string `json:"role"`
	StepType         string `json:"stepType"`
	RequireSignature bool   `json:"requireSignature"`
	SLAHours         int    `json:"slaHours,omitempty"`
}

type templateResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Category  string                 `json:"category"`
	IsDefault bool                   `json:"isDefault"`
	Steps     []templateStepResponse `json:"steps"`
	CreatedAt time.Time              `json:"createdAt"`
}

type templateStepResponse struct {
	ID               string `json:"id"`
	Order            int    `json:"order"`
	Role             string `json:"role"`
	StepType         string `json:"stepType"`
	RequireSignature bool   `json:"requireSignature"`
	SLAHours         int    `json:"slaHours,omitempty"`
}

func toTemplateResponse(template *workflow.Template) templateResponse {
	resp := templateResponse{
		ID:        template.ID.String(),
		Name:      template.Name,
		Category:  string(template.Category),
		IsDefault: template.IsDefault,
		CreatedAt: template.CreatedAt,
	}
	for _, step := range template.Steps {
		resp.Steps = append(resp.Steps, templateStepResponse{
			ID:               step.ID.String(),
			Order:            step.Order,
			Role:             string(step.Role),
			StepType:         string(step.StepType),
			RequireSignature: step.RequireSignature,
			SLAHours:         step.SLAHours,
		})
	}
	return resp
}

func (h *handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	actor := requestcontext.ActorID(r.Context())

	input := workflow.CreateTemplateInput{
		Name:      req.Name,
		Category:  req.Category,
		IsDefault: req.IsDefault,
	}
	for _, step := range req.Steps {
		input.Steps = append(input.Steps, workflow.CreateTemplateStepInput{
			Order:            step.Order,
			Role:             step.Role,
			StepType:         step.StepType,
			RequireSignature: step.RequireSignature,
			SLAHours:         step.SLAHours,
		})
	}

	template, err := h.deps.Templates.CreateTemplate(r.Context(), input, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTemplateResponse(template))
}

func (h *handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.deps.Templates.ListTemplates(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]templateResponse, 0, len(templates))
	for _, template := range templates {
		resp = append(resp, toTemplateResponse(template))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
