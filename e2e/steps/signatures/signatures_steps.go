package signatures

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}, token string) error
	GET(path string, token string) error
	AdminToken() (string, error)
	TokenFor(email string) (string, error)
	PasswordFor(email string) (string, error)
	LastStatus() int
	AggregateField(field string) (interface{}, error)
	VersionID() string
	StepID(order int) (string, error)
	RefreshAggregate(token string) error
}

// RegisterSteps registers electronic signature step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &signatureSteps{tc: tc}

	ctx.Step(`^"([^"]*)" signs step (\d+) with purpose "([^"]*)"$`, steps.signStep)
	ctx.Step(`^"([^"]*)" signs step (\d+) with purpose "([^"]*)" and credential "([^"]*)"$`, steps.signStepWithCredential)
	ctx.Step(`^the workflow run should be "([^"]*)"$`, steps.runStatusIs)
	ctx.Step(`^every completed step should reference the signed version$`, steps.stepsReferenceVersion)
}

type signatureSteps struct {
	tc TestContext
}

func (s *signatureSteps) signStep(ctx context.Context, email string, order int, purpose string) error {
	credential, err := s.tc.PasswordFor(email)
	if err != nil {
		return err
	}
	return s.sign(email, order, purpose, credential)
}

func (s *signatureSteps) signStepWithCredential(ctx context.Context, email string, order int, purpose, credential string) error {
	return s.sign(email, order, purpose, credential)
}

func (s *signatureSteps) sign(email string, order int, purpose, credential string) error {
	token, err := s.tc.TokenFor(email)
	if err != nil {
		return err
	}
	stepID, err := s.tc.StepID(order)
	if err != nil {
		return err
	}
	return s.tc.POST("/document-versions/"+s.tc.VersionID()+"/signatures", map[string]interface{}{
		"stepId":     stepID,
		"purpose":    purpose,
		"credential": credential,
	}, token)
}

func (s *signatureSteps) runStatusIs(ctx context.Context, expected string) error {
	token, err := s.tc.AdminToken()
	if err != nil {
		return err
	}
	if err := s.tc.RefreshAggregate(token); err != nil {
		return err
	}
	status, err := s.tc.AggregateField("workflowRuns.0.status")
	if err != nil {
		return err
	}
	if status != expected {
		return fmt.Errorf("expected run status %q, got %q", expected, status)
	}
	return nil
}

func (s *signatureSteps) stepsReferenceVersion(ctx context.Context) error {
	token, err := s.tc.AdminToken()
	if err != nil {
		return err
	}
	if err := s.tc.RefreshAggregate(token); err != nil {
		return err
	}
	for i := 0; ; i++ {
		field := fmt.Sprintf("workflowRuns.0.steps.%d", i)
		if _, err := s.tc.AggregateField(field); err != nil {
			if i == 0 {
				return fmt.Errorf("run has no steps")
			}
			return nil
		}
		versionID, err := s.tc.AggregateField(field + ".documentVersionId")
		if err != nil {
			return fmt.Errorf("step %d has no signed version", i+1)
		}
		if versionID != s.tc.VersionID() {
			return fmt.Errorf("step %d bound to %v, want %s", i+1, versionID, s.tc.VersionID())
		}
	}
}
