package e2e

import (
	"github.com/cucumber/godog"

	"doccontrol/e2e/steps/common"
	"doccontrol/e2e/steps/documents"
	"doccontrol/e2e/steps/signatures"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, users, assertions)
	common.RegisterSteps(ctx, tc)

	// Register document lifecycle steps
	documents.RegisterSteps(ctx, tc)

	// Register signature and workflow progression steps
	signatures.RegisterSteps(ctx, tc)
}
