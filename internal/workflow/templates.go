package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/storetx"
	"doccontrol/pkg/requestcontext"
)

// TemplateService owns workflow template authoring. Templates are immutable
// once created; the only later mutation is losing the default flag to a newer
// default in the same category.
type TemplateService struct {
	templates TemplateStore
	audit     audit.Recorder
	tx        storetx.StoreTx
	logger    *slog.Logger
}

type TemplateOption func(*TemplateService)

func WithTemplateLogger(logger *slog.Logger) TemplateOption {
	return func(s *TemplateService) { s.logger = logger }
}

func NewTemplateService(templates TemplateStore, recorder audit.Recorder, tx storetx.StoreTx, opts ...TemplateOption) *TemplateService {
	svc := &TemplateService{
		templates: templates,
		audit:     recorder,
		tx:        tx,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateTemplateStepInput declares one step; Order is assigned from position
// when zero.
type CreateTemplateStepInput struct {
	Order            int
	Role             string
	StepType         string
	RequireSignature bool
	SLAHours         int
}

type CreateTemplateInput struct {
	Name      string
	Category  string
	IsDefault bool
	Steps     []CreateTemplateStepInput
}

func (s *TemplateService) CreateTemplate(ctx context.Context, input CreateTemplateInput, actor id.UserID) (*Template, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "template name is required")
	}
	category, err := document.ParseCategory(input.Category)
	if err != nil {
		return nil, err
	}
	if len(input.Steps) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "template requires at least one step")
	}

	template := &Template{
		ID:        id.NewTemplateID(),
		Name:      input.Name,
		Category:  category,
		IsDefault: input.IsDefault,
		CreatedBy: actor,
		CreatedAt: requestcontext.Now(ctx),
	}
	for i, stepInput := range input.Steps {
		role, err := identity.ParseRole(stepInput.Role)
		if err != nil {
			return nil, err
		}
		stepType, err := ParseStepType(stepInput.StepType)
		if err != nil {
			return nil, err
		}
		order := stepInput.Order
		if order == 0 {
			order = i + 1
		}
		if order != i+1 {
			return nil, dErrors.New(dErrors.CodeValidation, "step orders must be contiguous starting at 1")
		}
		template.Steps = append(template.Steps, TemplateStep{
			ID:               id.NewTemplateStepID(),
			TemplateID:       template.ID,
			Order:            order,
			Role:             role,
			StepType:         stepType,
			RequireSignature: stepInput.RequireSignature,
			SLAHours:         stepInput.SLAHours,
		})
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.templates.Create(txCtx, template); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create workflow template")
		}
		if template.IsDefault {
			if err := s.templates.ClearDefaultExcept(txCtx, template.Category, template.ID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear previous default template")
			}
		}
		return s.audit.Record(txCtx, audit.Event{
			ActorID:    &actor,
			Action:     audit.ActionWorkflowTemplateCreated,
			EntityType: audit.EntityConfig,
			EntityID:   template.ID.String(),
			Metadata: map[string]any{
				"name":       template.Name,
				"category":   string(template.Category),
				"is_default": template.IsDefault,
				"steps":      len(template.Steps),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]*Template, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list workflow templates")
	}
	return templates, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, templateID id.TemplateID) (*Template, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow template")
	}
	return template, nil
}
