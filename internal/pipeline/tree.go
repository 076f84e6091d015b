package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/model"
)

// Default walk limits.
const (
	DefaultTreeDepth = 5
	IdleTreeDepth    = 3
	treeFanout       = 8
)

// TreeSource fetches session messages and child session ids.
type TreeSource interface {
	Messages(ctx context.Context, sessionID string) ([]model.RawMessage, error)
	Children(ctx context.Context, sessionID string) ([]string, error)
}

// SessionNode is one session with its direct children.
type SessionNode struct {
	SessionID string
	Messages  []model.RawMessage
	Children  []*SessionNode
}

// Assistant returns the assistant message infos of this node only.
func (n *SessionNode) Assistant() []model.AssistantMessage {
	return PrepareMessages(n.Messages).Infos()
}

type treeOptions struct {
	maxDepth int
	root     []model.RawMessage
	haveRoot bool
}

// TreeOption configures ListSessionTree.
type TreeOption func(*treeOptions)

// WithMaxDepth bounds how many levels below the root are fetched.
func WithMaxDepth(n int) TreeOption {
	return func(o *treeOptions) { o.maxDepth = n }
}

// WithRootMessages supplies already-fetched root messages so the root is not fetched twice.
func WithRootMessages(raw []model.RawMessage) TreeOption {
	return func(o *treeOptions) {
		o.root = raw
		o.haveRoot = true
	}
}

// ListSessionTree walks the session tree breadth first. Each level is fetched
// concurrently with bounded fan-out. A session already seen is never revisited,
// and a fetch that fails contributes an empty node instead of an error.
func ListSessionTree(ctx context.Context, rootID string, src TreeSource, opts ...TreeOption) (*SessionNode, error) {
	o := treeOptions{maxDepth: DefaultTreeDepth}
	for _, opt := range opts {
		opt(&o)
	}

	root := &SessionNode{SessionID: rootID}
	visited := map[string]struct{}{rootID: {}}
	level := []*SessionNode{root}

	for depth := 0; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		expand := depth < o.maxDepth
		childIDs := make([][]string, len(level))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(treeFanout)
		for i, node := range level {
			g.Go(func() error {
				if depth == 0 && o.haveRoot {
					node.Messages = o.root
				} else if msgs, err := src.Messages(gctx, node.SessionID); err == nil {
					node.Messages = msgs
				}
				if expand {
					if ids, err := src.Children(gctx, node.SessionID); err == nil {
						childIDs[i] = ids
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		var next []*SessionNode
		for i, node := range level {
			for _, id := range childIDs[i] {
				if _, seen := visited[id]; seen {
					continue
				}
				visited[id] = struct{}{}
				child := &SessionNode{SessionID: id}
				node.Children = append(node.Children, child)
				next = append(next, child)
			}
		}
		level = next
	}

	return root, nil
}

// Flatten returns the raw messages of node and every descendant, depth first.
func Flatten(node *SessionNode) []model.RawMessage {
	var out []model.RawMessage
	stack := []*SessionNode{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n.Messages...)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// SessionIDs returns the ids of node and every descendant, depth first.
func SessionIDs(node *SessionNode) []string {
	var ids []string
	stack := []*SessionNode{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, n.SessionID)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return ids
}

// ChildSummary is the usage of one direct child subtree.
type ChildSummary struct {
	SessionID string           `json:"sessionID"`
	Tokens    model.TokenStats `json:"tokens"`
	Cost      float64          `json:"cost"`
}

// TreeStats is the usage of a whole session tree.
type TreeStats struct {
	Totals         model.TokenStats        `json:"totals"`
	ByModel        model.TokenStatsByModel `json:"byModel"`
	ChildSummaries []ChildSummary          `json:"childSummaries"`
}

// AggregateSessionTree sums the assistant usage of the tree and summarizes each
// direct child subtree.
func AggregateSessionTree(node *SessionNode, custom config.PriceConfig) TreeStats {
	all := PrepareMessages(Flatten(node)).Infos()
	stats := TreeStats{
		Totals:         AggregateTokens(all),
		ByModel:        AggregateByModel(all),
		ChildSummaries: make([]ChildSummary, 0, len(node.Children)),
	}

	pricing := config.Merge(custom)
	for _, child := range node.Children {
		msgs := PrepareMessages(Flatten(child)).Infos()
		stats.ChildSummaries = append(stats.ChildSummaries, ChildSummary{
			SessionID: child.SessionID,
			Tokens:    AggregateTokens(msgs),
			Cost:      priceWith(AggregateByModel(msgs), pricing).TotalCost,
		})
	}
	return stats
}
