// internal/council/dispatcher_test.go
package council

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/expert"
	"council-orchestrator/internal/models"
)

// fakeCaller resolves each model after its configured delay, or fails it.
type fakeCaller struct {
	delays   map[string]time.Duration
	failures map[string]error
}

func (f *fakeCaller) Call(ctx context.Context, req expert.Request) (string, error) {
	if err, ok := f.failures[req.Model]; ok {
		return "", err
	}
	select {
	case <-time.After(f.delays[req.Model]):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "opinion from " + req.Model, nil
}

func (f *fakeCaller) Stream(ctx context.Context, req expert.Request) (<-chan expert.Fragment, error) {
	return nil, errors.New("not used")
}

func testRoles() []config.RoleConfig {
	return []config.RoleConfig{
		{Name: "Slow Expert", Model: "slow-model", Context: "merged"},
		{Name: "Fast Expert", Model: "fast-model", Context: "merged"},
	}
}

func testDocs() []models.RetrievedDocument {
	return []models.RetrievedDocument{
		{Rank: 1, Score: 0.9, Text: "statute text", Collection: models.CollectionStatutes},
		{Rank: 2, Score: 0.8, Text: "case text", Collection: models.CollectionCases},
	}
}

func newTestDispatcher(t *testing.T, caller expert.Caller, roles []config.RoleConfig) *Dispatcher {
	return NewDispatcher(
		caller,
		config.LLMConfig{CouncilTemperature: 0.5},
		config.CouncilConfig{Timeout: 5000, Roles: roles},
		logger.NewTestLogger(t),
	)
}

func collect(ch <-chan models.ExpertOpinion) []models.ExpertOpinion {
	var opinions []models.ExpertOpinion
	for op := range ch {
		opinions = append(opinions, op)
	}
	return opinions
}

func TestConvene_CompletionOrder(t *testing.T) {
	caller := &fakeCaller{delays: map[string]time.Duration{
		"slow-model": 150 * time.Millisecond,
		"fast-model": 10 * time.Millisecond,
	}}
	d := newTestDispatcher(t, caller, testRoles())

	opinions := collect(d.Convene(context.Background(), "question", testDocs()))

	require.Len(t, opinions, 2)
	// Launch order is slow first, but the fast member must arrive first.
	assert.Equal(t, "Fast Expert", opinions[0].Role)
	assert.Equal(t, "Slow Expert", opinions[1].Role)
}

func TestConvene_FailedMemberIsAbsent(t *testing.T) {
	caller := &fakeCaller{
		delays:   map[string]time.Duration{"fast-model": time.Millisecond},
		failures: map[string]error{"slow-model": expert.ErrExpertBackend},
	}
	d := newTestDispatcher(t, caller, testRoles())

	opinions := collect(d.Convene(context.Background(), "question", testDocs()))

	require.Len(t, opinions, 1)
	assert.Equal(t, "Fast Expert", opinions[0].Role)
}

func TestConvene_AllMembersFail(t *testing.T) {
	caller := &fakeCaller{failures: map[string]error{
		"slow-model": expert.ErrExpertBackend,
		"fast-model": expert.ErrExpertTimeout,
	}}
	d := newTestDispatcher(t, caller, testRoles())

	opinions := collect(d.Convene(context.Background(), "question", testDocs()))

	assert.Empty(t, opinions)
}

func TestConvene_SkipsMemberWithEmptyContext(t *testing.T) {
	roles := []config.RoleConfig{
		{Name: "Case Researcher", Model: "fast-model", Context: "cases"},
		{Name: "Generalist", Model: "fast-model", Context: "merged"},
	}
	caller := &fakeCaller{delays: map[string]time.Duration{"fast-model": time.Millisecond}}
	d := newTestDispatcher(t, caller, roles)

	// Only statute documents retrieved; the cases-only seat has nothing to
	// read and must not be asked.
	statutesOnly := []models.RetrievedDocument{
		{Rank: 1, Score: 0.9, Text: "statute text", Collection: models.CollectionStatutes},
	}
	opinions := collect(d.Convene(context.Background(), "question", statutesOnly))

	require.Len(t, opinions, 1)
	assert.Equal(t, "Generalist", opinions[0].Role)
}

func TestConvene_WebSearchMemberRunsWithoutContext(t *testing.T) {
	roles := []config.RoleConfig{
		{Name: "Case Researcher", Model: "fast-model", Context: "cases", WebSearch: true},
	}
	caller := &fakeCaller{delays: map[string]time.Duration{"fast-model": time.Millisecond}}
	d := newTestDispatcher(t, caller, roles)

	opinions := collect(d.Convene(context.Background(), "question", nil))

	require.Len(t, opinions, 1)
	assert.True(t, opinions[0].UsedWebSearch)
}

func TestSelectDocuments(t *testing.T) {
	docs := testDocs()

	assert.Len(t, selectDocuments(docs, "merged"), 2)
	assert.Len(t, selectDocuments(docs, "statutes"), 1)
	assert.Equal(t, models.CollectionCases, selectDocuments(docs, "cases")[0].Collection)
}
