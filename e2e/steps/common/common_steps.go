package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, token string) error
	AdminToken() (string, error)
	EnsureUser(email, role, password string) error
	LastStatus() int
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers background and generic assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is running$`, steps.serviceIsRunning)
	ctx.Step(`^a user "([^"]*)" with role "([^"]*)" and password "([^"]*)"$`, steps.ensureUser)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusIs)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldIs)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/healthz", ""); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("health check returned %d", s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) ensureUser(ctx context.Context, email, role, password string) error {
	return s.tc.EnsureUser(email, role, password)
}

func (s *commonSteps) responseStatusIs(ctx context.Context, expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) responseFieldIs(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, fmt.Sprintf("%v", value))
	}
	return nil
}
