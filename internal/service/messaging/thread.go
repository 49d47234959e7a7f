package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/messaging-api/internal/model"
	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
)

// ThreadSource is the read side thread assembly needs.
// repository.MessageRepository satisfies it.
type ThreadSource interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.Message, error)
}

// BuildThread resolves id to its root and returns the whole conversation
// tree, children ordered as src returns them. A parent chain that repeats a
// message or points at a missing one is a ThreadIntegrity error.
func BuildThread(ctx context.Context, src ThreadSource, id uuid.UUID) (*model.ThreadNode, error) {
	root, err := findRoot(ctx, src, id)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	return descend(ctx, src, root, seen)
}

func findRoot(ctx context.Context, src ThreadSource, id uuid.UUID) (*model.Message, error) {
	cur, err := src.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{}
	for {
		if _, ok := seen[cur.ID]; ok {
			return nil, apperrors.ThreadIntegrity(fmt.Sprintf("parent chain of message %s contains a cycle at %s", id, cur.ID))
		}
		seen[cur.ID] = struct{}{}

		if cur.ParentID == nil {
			return cur, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parent, err := src.Get(ctx, *cur.ParentID)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ThreadIntegrity(fmt.Sprintf("message %s points at missing parent %s", cur.ID, *cur.ParentID))
		}
		if err != nil {
			return nil, err
		}
		cur = parent
	}
}

func descend(ctx context.Context, src ThreadSource, msg *model.Message, seen map[uuid.UUID]struct{}) (*model.ThreadNode, error) {
	if _, ok := seen[msg.ID]; ok {
		return nil, apperrors.ThreadIntegrity(fmt.Sprintf("message %s appears twice in its thread", msg.ID))
	}
	seen[msg.ID] = struct{}{}

	children, err := src.ListChildren(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	node := &model.ThreadNode{Message: msg, Children: make([]*model.ThreadNode, 0, len(children))}
	for _, child := range children {
		c, err := descend(ctx, src, child, seen)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, c)
	}
	return node, nil
}
