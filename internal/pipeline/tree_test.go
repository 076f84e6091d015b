package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTree struct {
	mu       sync.Mutex
	messages map[string][]model.RawMessage
	children map[string][]string
	failing  map[string]bool
	fetched  map[string]int
}

func (f *fakeTree) Messages(_ context.Context, id string) ([]model.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetched == nil {
		f.fetched = make(map[string]int)
	}
	f.fetched[id]++
	if f.failing[id] {
		return nil, errors.New("boom")
	}
	return f.messages[id], nil
}

func (f *fakeTree) Children(_ context.Context, id string) ([]string, error) {
	if f.failing[id] {
		return nil, errors.New("boom")
	}
	return f.children[id], nil
}

func assistantRaw(session string, in int64) model.RawMessage {
	return model.RawMessage{Assistant: &model.AssistantMessage{
		ID:         session + "-msg",
		SessionID:  session,
		ProviderID: "p",
		ModelID:    "m",
		Tokens:     model.Tokens{Input: in},
	}}
}

func TestListSessionTree_CycleAndDepth(t *testing.T) {
	src := &fakeTree{
		messages: map[string][]model.RawMessage{
			"root": {assistantRaw("root", 1)},
			"c1":   {assistantRaw("c1", 10)},
			"c2":   {assistantRaw("c2", 100)},
			"g1":   {assistantRaw("g1", 1000)},
		},
		children: map[string][]string{
			"root": {"c1", "c2"},
			"c1":   {"g1", "root"},
			"c2":   {"c1"},
			"g1":   {"deep"},
		},
	}

	tree, err := ListSessionTree(context.Background(), "root", src, WithMaxDepth(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"root", "c1", "g1", "c2"}, SessionIDs(tree))
	require.Len(t, tree.Children, 2)
	assert.Empty(t, tree.Children[1].Children, "c1 already visited under root")
	require.Len(t, tree.Children[0].Children, 1)
	assert.Empty(t, tree.Children[0].Children[0].Children, "depth limit stops at g1")

	for id, n := range src.fetched {
		assert.Equal(t, 1, n, "session %s fetched more than once", id)
	}
}

func TestListSessionTree_FailedChildContributesNothing(t *testing.T) {
	src := &fakeTree{
		messages: map[string][]model.RawMessage{"root": {assistantRaw("root", 5)}},
		children: map[string][]string{"root": {"bad"}},
		failing:  map[string]bool{"bad": true},
	}

	tree, err := ListSessionTree(context.Background(), "root", src)
	require.NoError(t, err)

	stats := AggregateSessionTree(tree, config.PriceConfig{"p/m": {InputPerMillion: 1_000_000}})
	assert.Equal(t, int64(5), stats.Totals.Input)
	require.Len(t, stats.ChildSummaries, 1)
	assert.Equal(t, "bad", stats.ChildSummaries[0].SessionID)
	assert.Zero(t, stats.ChildSummaries[0].Tokens.Total)
	assert.Zero(t, stats.ChildSummaries[0].Cost)
}

func TestListSessionTree_RootMessagesReused(t *testing.T) {
	src := &fakeTree{children: map[string][]string{}}
	root := []model.RawMessage{assistantRaw("root", 3)}

	tree, err := ListSessionTree(context.Background(), "root", src, WithRootMessages(root))
	require.NoError(t, err)

	assert.Zero(t, src.fetched["root"])
	assert.Len(t, tree.Assistant(), 1)
}

func TestListSessionTree_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ListSessionTree(ctx, "root", &fakeTree{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregateSessionTree_ChildSummaries(t *testing.T) {
	tree := &SessionNode{
		SessionID: "root",
		Messages:  []model.RawMessage{assistantRaw("root", 1)},
		Children: []*SessionNode{
			{
				SessionID: "c1",
				Messages:  []model.RawMessage{assistantRaw("c1", 10)},
				Children:  []*SessionNode{{SessionID: "g1", Messages: []model.RawMessage{assistantRaw("g1", 100)}}},
			},
			{SessionID: "c2", Messages: []model.RawMessage{{User: &model.UserMessage{ID: "u"}}}},
		},
	}

	stats := AggregateSessionTree(tree, config.PriceConfig{"p/m": {InputPerMillion: 1_000_000}})

	assert.Equal(t, int64(111), stats.Totals.Input)
	assert.Equal(t, int64(111), stats.ByModel["p/m"].Input)
	require.Len(t, stats.ChildSummaries, 2)
	assert.Equal(t, int64(110), stats.ChildSummaries[0].Tokens.Input)
	assert.InDelta(t, 110.0, stats.ChildSummaries[0].Cost, 1e-9)
	assert.Zero(t, stats.ChildSummaries[1].Tokens.Total)
}

func TestPrepareWithChildren(t *testing.T) {
	root := []model.RawMessage{
		assistantRaw("root", 1),
		{User: &model.UserMessage{ID: "u1", Agent: "build"}},
		{},
	}
	child := []model.RawMessage{assistantRaw("c1", 2)}

	p := PrepareWithChildren(root, [][]model.RawMessage{child})

	assert.Len(t, p.Assistant, 2)
	assert.Len(t, p.User, 1)
	assert.Equal(t, "c1", p.Infos()[1].SessionID)
}
