package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

// scriptedRunner replies with the next result in its script.
type scriptedRunner struct {
	results []*model.TurnResult
	err     error
	inputs  []model.QueryInput
}

func (r *scriptedRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.TurnResult, error) {
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return nil, r.err
	}
	res := r.results[0]
	r.results = r.results[1:]
	cp := *res
	cp.ConversationID = in.ConversationID
	return &cp, nil
}

type savedResponse struct {
	content  string
	resolved bool
}

type fakeConversations struct {
	saved   []savedResponse
	cleared []string
}

func (f *fakeConversations) SaveResponse(ctx context.Context, id, content string, resolved bool) error {
	f.saved = append(f.saved, savedResponse{content, resolved})
	return nil
}

func (f *fakeConversations) Clear(ctx context.Context, id string) error {
	f.cleared = append(f.cleared, id)
	return nil
}

func question(q string) *model.TurnResult { return &model.TurnResult{Reply: q} }
func answer(a string) *model.TurnResult   { return &model.TurnResult{Reply: a, Resolved: true} }

func TestHandleClarifyThenResolve(t *testing.T) {
	ctx := context.Background()
	runner := &scriptedRunner{results: []*model.TurnResult{question("Which biscuit?"), answer("Recorded.")}}
	m := NewManager(runner, &fakeConversations{}, 3)

	res, err := m.Handle(ctx, "s1", "sold 5 digestive biscuit")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Equal(t, Status{Phase: PhaseClarifying, Clarifications: 1}, m.Status("s1"))

	res, err = m.Handle(ctx, "s1", "the 300g one")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, Status{Phase: PhaseResolved, Clarifications: 0}, m.Status("s1"))
	assert.Equal(t, "s1", runner.inputs[1].ConversationID)
}

func TestHandleGivesUpAtCeiling(t *testing.T) {
	ctx := context.Background()
	runner := &scriptedRunner{results: []*model.TurnResult{question("q1"), question("q2"), question("q3"), question("q4")}}
	conv := &fakeConversations{}
	m := NewManager(runner, conv, 3)

	for i := 0; i < 2; i++ {
		res, err := m.Handle(ctx, "s1", "hm")
		require.NoError(t, err)
		assert.False(t, res.GaveUp)
	}
	res, err := m.Handle(ctx, "s1", "hm")
	require.NoError(t, err)
	assert.True(t, res.GaveUp)
	assert.Equal(t, GiveUpMessage, res.Reply)
	assert.Equal(t, []savedResponse{{GiveUpMessage, true}}, conv.saved)
	assert.Equal(t, 0, m.Status("s1").Clarifications)

	// the counter starts over for the next request
	res, err = m.Handle(ctx, "s1", "new request")
	require.NoError(t, err)
	assert.False(t, res.GaveUp)
	assert.Equal(t, 1, m.Status("s1").Clarifications)
}

func TestHandleErrorLeavesSessionUntouched(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("model unavailable")}
	m := NewManager(runner, &fakeConversations{}, 3)

	_, err := m.Handle(context.Background(), "s1", "hello")
	require.Error(t, err)
	assert.Equal(t, Status{Phase: PhaseClarifying}, m.Status("s1"))
}

func TestHandleValidatesInput(t *testing.T) {
	m := NewManager(&scriptedRunner{}, &fakeConversations{}, 3)

	_, err := m.Handle(context.Background(), "s1", "   ")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))

	_, err = m.Handle(context.Background(), "", "hi")
	require.Error(t, err)
}

func TestConverseAsksUntilResolved(t *testing.T) {
	runner := &scriptedRunner{results: []*model.TurnResult{question("Which product?"), question("What date?"), answer("Done.")}}
	m := NewManager(runner, &fakeConversations{}, 5)

	var asked []string
	replies := []string{"premium tea", "yesterday"}
	res, err := m.Converse(context.Background(), "s1", "sold 3", func(ctx context.Context, q string) (string, error) {
		asked = append(asked, q)
		r := replies[0]
		replies = replies[1:]
		return r, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Done.", res.Reply)
	assert.Equal(t, []string{"Which product?", "What date?"}, asked)
	require.Len(t, runner.inputs, 3)
	assert.Equal(t, "yesterday", runner.inputs[2].Query)
}

func TestReset(t *testing.T) {
	conv := &fakeConversations{}
	m := NewManager(&scriptedRunner{results: []*model.TurnResult{question("q")}}, conv, 3)

	_, err := m.Handle(context.Background(), "s1", "hi")
	require.NoError(t, err)
	require.NoError(t, m.Reset(context.Background(), "s1"))

	assert.Equal(t, []string{"s1"}, conv.cleared)
	assert.Equal(t, Status{Phase: PhaseClarifying}, m.Status("s1"))
}

func TestStatusDoesNotCreateSession(t *testing.T) {
	m := NewManager(&scriptedRunner{}, &fakeConversations{}, 3)

	assert.Equal(t, Status{Phase: PhaseClarifying}, m.Status("never-seen"))
	assert.Empty(t, m.sessions)
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	now := time.Date(2024, 9, 12, 9, 0, 0, 0, time.UTC)
	runner := &scriptedRunner{results: []*model.TurnResult{question("which biscuit?"), answer("done")}}
	m := NewManager(runner, &fakeConversations{}, 3, WithIdleTimeout(time.Hour), withClock(func() time.Time { return now }))

	_, err := m.Handle(context.Background(), "s1", "sold 5 biscuits")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Status("s1").Clarifications)

	now = now.Add(2 * time.Hour)
	_, err = m.Handle(context.Background(), "s2", "how much tea?")
	require.NoError(t, err)

	assert.NotContains(t, m.sessions, "s1")
	assert.Contains(t, m.sessions, "s2")
	assert.Equal(t, Status{Phase: PhaseClarifying}, m.Status("s1"))
	assert.Equal(t, PhaseResolved, m.Status("s2").Phase)
}

func TestIdleTimeoutDisabled(t *testing.T) {
	now := time.Date(2024, 9, 12, 9, 0, 0, 0, time.UTC)
	runner := &scriptedRunner{results: []*model.TurnResult{question("which biscuit?"), answer("done")}}
	m := NewManager(runner, &fakeConversations{}, 3, WithIdleTimeout(0), withClock(func() time.Time { return now }))

	_, err := m.Handle(context.Background(), "s1", "sold 5 biscuits")
	require.NoError(t, err)
	now = now.Add(48 * time.Hour)
	_, err = m.Handle(context.Background(), "s2", "how much tea?")
	require.NoError(t, err)

	assert.Equal(t, 1, m.Status("s1").Clarifications)
}
