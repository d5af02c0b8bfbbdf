package acceptance

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the Gherkin acceptance suite against the memory
// engine's Go API directly, in-process — no server, no subprocess.
func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping acceptance tests in short mode")
	}

	tags := os.Getenv("GODOG_TAGS")

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Tags:     tags,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("acceptance tests failed")
	}
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &testContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		return c, tc.reset()
	})
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.teardown()
		return c, nil
	})

	ctx.Step(`^a fresh memory engine$`, tc.freshMemoryEngine)
	ctx.Step(`^I remember a chunk with summary "([^"]*)"$`, tc.rememberSummaryOnly)
	ctx.Step(`^I remember a chunk with summary "([^"]*)" and content "([^"]*)"$`, tc.rememberSummaryAndContent)
	ctx.Step(`^I can retrieve that chunk by id$`, tc.canRetrieveById)
	ctx.Step(`^I recall "([^"]*)" with limit (\d+)$`, tc.recall)
	ctx.Step(`^the top result has summary "([^"]*)"$`, tc.topResultHasSummary)
	ctx.Step(`^I obsolete that chunk with reason "([^"]*)"$`, tc.obsoleteThatChunk)
	ctx.Step(`^that chunk has status "([^"]*)"$`, tc.thatChunkHasStatus)
	ctx.Step(`^that chunk's context notes mention "([^"]*)"$`, tc.thatChunkNotesMention)
	ctx.Step(`^the chunk file is rewritten externally with content "([^"]*)"$`, tc.rewriteChunkFileExternally)
	ctx.Step(`^I reconcile the memory engine$`, tc.reconcileMemoryEngine)
	ctx.Step(`^recalling "([^"]*)" finds that chunk$`, tc.recallingFindsThatChunk)
}
