// internal/synthesizer/chairman_test.go
package synthesizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-orchestrator/internal/common/config"
	commonerrors "council-orchestrator/internal/common/errors"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/expert"
	"council-orchestrator/internal/models"
)

// streamingCaller replays canned fragments and records the last request.
type streamingCaller struct {
	fragments []expert.Fragment
	streamErr error
	lastReq   expert.Request
}

func (s *streamingCaller) Call(ctx context.Context, req expert.Request) (string, error) {
	return "", errors.New("not used")
}

func (s *streamingCaller) Stream(ctx context.Context, req expert.Request) (<-chan expert.Fragment, error) {
	s.lastReq = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	out := make(chan expert.Fragment, len(s.fragments))
	for _, f := range s.fragments {
		out <- f
	}
	close(out)
	return out, nil
}

func newTestChairman(t *testing.T, caller expert.Caller) *Chairman {
	llm := config.LLMConfig{
		ChairmanModel:       "chairman-model",
		ChairmanTemperature: 0.4,
		StreamTimeout:       5000,
	}
	return NewChairman(caller, llm, logger.NewTestLogger(t))
}

func fragmentsOf(texts ...string) []expert.Fragment {
	fragments := make([]expert.Fragment, len(texts))
	for i, text := range texts {
		fragments[i] = expert.Fragment{Text: text}
	}
	return fragments
}

func TestSynthesize_TokensThenFollowup(t *testing.T) {
	caller := &streamingCaller{fragments: fragmentsOf(
		"The court would likely ",
		"rule in your favor.\n",
		Sentinel,
		"\nWhat remedies are available?",
	)}
	chairman := newTestChairman(t, caller)

	var events []models.StreamEvent
	answer, followUps, err := chairman.Synthesize(context.Background(), "q", nil, nil, func(ev models.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, "The court would likely rule in your favor.", answer)
	assert.Equal(t, []string{"What remedies are available?"}, followUps)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, models.EventFollowup, last.Kind)
	var streamed string
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, models.EventToken, ev.Kind)
		streamed += ev.Text
	}
	assert.NotContains(t, streamed, Sentinel)
}

func TestSynthesize_NoSentinelMeansNoFollowupEvent(t *testing.T) {
	caller := &streamingCaller{fragments: fragmentsOf("Just an answer.")}
	chairman := newTestChairman(t, caller)

	var events []models.StreamEvent
	answer, followUps, err := chairman.Synthesize(context.Background(), "q", nil, nil, func(ev models.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, "Just an answer.", answer)
	assert.Empty(t, followUps)
	for _, ev := range events {
		assert.Equal(t, models.EventToken, ev.Kind)
	}
}

func TestSynthesize_PromptSelection(t *testing.T) {
	caller := &streamingCaller{fragments: fragmentsOf("ok")}
	chairman := newTestChairman(t, caller)

	_, _, err := chairman.Synthesize(context.Background(), "q", nil, nil, func(models.StreamEvent) {})
	require.NoError(t, err)
	assert.Equal(t, directSystemPrompt, caller.lastReq.SystemPrompt)

	opinions := []models.ExpertOpinion{{Role: "Expert", Model: "m", Text: "view"}}
	_, _, err = chairman.Synthesize(context.Background(), "q", nil, opinions, func(models.StreamEvent) {})
	require.NoError(t, err)
	assert.Equal(t, chairmanSystemPrompt, caller.lastReq.SystemPrompt)
	assert.Contains(t, caller.lastReq.UserPrompt, "EXPERT OPINIONS")
	assert.Contains(t, caller.lastReq.UserPrompt, "view")
}

func TestSynthesize_StreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		caller *streamingCaller
	}{
		{name: "stream open fails", caller: &streamingCaller{streamErr: expert.ErrExpertBackend}},
		{name: "mid-stream failure", caller: &streamingCaller{fragments: []expert.Fragment{
			{Text: "partial"},
			{Err: expert.ErrExpertBackend},
		}}},
		{name: "empty stream", caller: &streamingCaller{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chairman := newTestChairman(t, tt.caller)

			_, _, err := chairman.Synthesize(context.Background(), "q", nil, nil, func(models.StreamEvent) {})

			var stdErr *commonerrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, commonerrors.ErrCodeSynthesisFailed, stdErr.Code)
		})
	}
}
