package documents

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}, token string) error
	GET(path string, token string) error
	AdminToken() (string, error)
	TokenFor(email string) (string, error)
	LastStatus() int
	GetResponseField(field string) (interface{}, error)
	SetTypeID(id string)
	TypeID() string
	SetDocumentID(id string)
	DocumentID() string
	AggregateField(field string) (interface{}, error)
	RefreshAggregate(token string) error
}

// RegisterSteps registers document and workflow template step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &documentSteps{tc: tc}

	ctx.Step(`^a document type named "([^"]*)"$`, steps.ensureDocumentType)
	ctx.Step(`^a workflow template "([^"]*)" for category "([^"]*)" with steps:$`, steps.createTemplate)
	ctx.Step(`^"([^"]*)" creates a document titled "([^"]*)" in category "([^"]*)" using the template$`, steps.createDocument)
	ctx.Step(`^"([^"]*)" creates a new version labelled "([^"]*)"$`, steps.createVersion)
	ctx.Step(`^the document status should be "([^"]*)"$`, steps.documentStatusIs)
	ctx.Step(`^the document lifecycle state should be "([^"]*)"$`, steps.documentLifecycleIs)
}

type documentSteps struct {
	tc         TestContext
	templateID string
}

func (s *documentSteps) ensureDocumentType(ctx context.Context, name string) error {
	token, err := s.tc.AdminToken()
	if err != nil {
		return err
	}
	err = s.tc.POST("/document-types", map[string]interface{}{"name": name}, token)
	if err != nil {
		return err
	}
	switch s.tc.LastStatus() {
	case 201:
		id, err := s.tc.GetResponseField("id")
		if err != nil {
			return err
		}
		s.tc.SetTypeID(id.(string))
		return nil
	case 409:
		// Already seeded by a previous run; the ID is stable, look it up.
		return s.findDocumentType(name, token)
	default:
		return fmt.Errorf("create document type: unexpected status %d", s.tc.LastStatus())
	}
}

func (s *documentSteps) findDocumentType(name, token string) error {
	if err := s.tc.GET("/document-types", token); err != nil {
		return err
	}
	// List responses are bare arrays; walk them by index.
	for i := 0; ; i++ {
		got, err := s.tc.GetResponseField(strconv.Itoa(i) + ".name")
		if err != nil {
			return fmt.Errorf("document type %q not found", name)
		}
		if got == name {
			id, err := s.tc.GetResponseField(strconv.Itoa(i) + ".id")
			if err != nil {
				return err
			}
			s.tc.SetTypeID(id.(string))
			return nil
		}
	}
}

func (s *documentSteps) createTemplate(ctx context.Context, name, category string, table *godog.Table) error {
	token, err := s.tc.AdminToken()
	if err != nil {
		return err
	}
	var stepRows []map[string]interface{}
	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		order, err := strconv.Atoi(row.Cells[0].Value)
		if err != nil {
			return fmt.Errorf("step order %q: %w", row.Cells[0].Value, err)
		}
		stepRows = append(stepRows, map[string]interface{}{
			"order":            order,
			"role":             row.Cells[1].Value,
			"stepType":         row.Cells[2].Value,
			"requireSignature": true,
		})
	}
	err = s.tc.POST("/workflows", map[string]interface{}{
		"name":      name,
		"category":  category,
		"isDefault": true,
		"steps":     stepRows,
	}, token)
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create template: unexpected status %d", s.tc.LastStatus())
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.templateID = id.(string)
	return nil
}

func (s *documentSteps) createDocument(ctx context.Context, email, title, category string) error {
	token, err := s.tc.TokenFor(email)
	if err != nil {
		return err
	}
	if s.templateID == "" {
		return fmt.Errorf("no workflow template created in this scenario")
	}
	// Document numbers are unique across the store; suffix with a fresh
	// fragment so reruns against a persistent database do not collide.
	number := "E2E-" + strings.ToUpper(uuid.NewString()[:8])
	err = s.tc.POST("/documents", map[string]interface{}{
		"title":      title,
		"number":     number,
		"category":   category,
		"security":   "INTERNAL",
		"typeId":     s.tc.TypeID(),
		"templateId": s.templateID,
	}, token)
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create document: unexpected status %d", s.tc.LastStatus())
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetDocumentID(id.(string))
	return s.tc.RefreshAggregate(token)
}

func (s *documentSteps) createVersion(ctx context.Context, email, label string) error {
	token, err := s.tc.TokenFor(email)
	if err != nil {
		return err
	}
	err = s.tc.POST("/documents/"+s.tc.DocumentID()+"/versions", map[string]interface{}{
		"versionLabel": label,
	}, token)
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create version: unexpected status %d", s.tc.LastStatus())
	}
	return s.tc.RefreshAggregate(token)
}

func (s *documentSteps) documentStatusIs(ctx context.Context, expected string) error {
	return s.documentFieldIs("document.status", expected)
}

func (s *documentSteps) documentLifecycleIs(ctx context.Context, expected string) error {
	return s.documentFieldIs("document.lifecycleState", expected)
}

func (s *documentSteps) documentFieldIs(field, expected string) error {
	token, err := s.tc.AdminToken()
	if err != nil {
		return err
	}
	if err := s.tc.RefreshAggregate(token); err != nil {
		return err
	}
	value, err := s.tc.AggregateField(field)
	if err != nil {
		return err
	}
	if value != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, value)
	}
	return nil
}
