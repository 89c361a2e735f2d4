package domain

import (
	"slices"
	"time"
)

// Review rating bounds. Replies carry ReplyRating.
const (
	MinRating   = 1
	MaxRating   = 5
	ReplyRating = 0
)

// ReviewRecord is a single review or reply row as stored.
type ReviewRecord struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	ParentID  *string   `json:"parent_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Author    *Author   `json:"user,omitempty"`
}

// IsReply reports whether the record answers another review.
func (r *ReviewRecord) IsReply() bool {
	return r.ParentID != nil
}

// ReviewNode is a review together with its ordered replies.
type ReviewNode struct {
	ReviewRecord
	Replies []*ReviewNode `json:"replies"`
}

// NewReviewNode wraps rec in a node without replies.
func NewReviewNode(rec ReviewRecord) *ReviewNode {
	return &ReviewNode{ReviewRecord: rec, Replies: []*ReviewNode{}}
}

// BuildTree nests flat records into a reply forest. Records whose parent is
// missing, or who name themselves as parent, become roots. Replies are ordered
// oldest first and roots newest first; ties keep input order.
func BuildTree(records []ReviewRecord) []*ReviewNode {
	nodes := make(map[string]*ReviewNode, len(records))
	ordered := make([]*ReviewNode, 0, len(records))
	for _, rec := range records {
		n := NewReviewNode(rec)
		ordered = append(ordered, n)
		if _, dup := nodes[rec.ID]; !dup {
			nodes[rec.ID] = n
		}
	}

	roots := make([]*ReviewNode, 0)
	for _, n := range ordered {
		if n.ParentID != nil && *n.ParentID != n.ID {
			if parent, ok := nodes[*n.ParentID]; ok && !isDescendant(parent, n, nodes) {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	for _, n := range ordered {
		slices.SortStableFunc(n.Replies, func(a, b *ReviewNode) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}
	slices.SortStableFunc(roots, func(a, b *ReviewNode) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return roots
}

// isDescendant reports whether attaching child under parent would close a
// cycle, i.e. parent already hangs below child through its parent chain.
func isDescendant(parent, child *ReviewNode, nodes map[string]*ReviewNode) bool {
	seen := make(map[string]bool)
	for cur := parent; cur != nil && cur.ParentID != nil; {
		if cur.ID == child.ID {
			return true
		}
		if seen[cur.ID] {
			return false
		}
		seen[cur.ID] = true
		cur = nodes[*cur.ParentID]
	}
	return false
}

// InsertNode returns a copy of tree with node added. Roots are prepended.
// Replies are appended to their parent, and every ancestor on the path is
// copied while untouched subtrees are shared. A reply whose parent cannot
// be found is promoted to a root. tree itself is never modified.
func InsertNode(tree []*ReviewNode, node *ReviewNode) []*ReviewNode {
	if node.ParentID != nil {
		if updated, ok := insertReply(tree, node); ok {
			return updated
		}
	}

	out := make([]*ReviewNode, 0, len(tree)+1)
	out = append(out, node)
	return append(out, tree...)
}

func insertReply(nodes []*ReviewNode, node *ReviewNode) ([]*ReviewNode, bool) {
	for i, n := range nodes {
		var replaced *ReviewNode
		if n.ID == *node.ParentID {
			replies := make([]*ReviewNode, 0, len(n.Replies)+1)
			replies = append(replies, n.Replies...)
			replaced = &ReviewNode{ReviewRecord: n.ReviewRecord, Replies: append(replies, node)}
		} else if replies, ok := insertReply(n.Replies, node); ok {
			replaced = &ReviewNode{ReviewRecord: n.ReviewRecord, Replies: replies}
		}
		if replaced != nil {
			out := slices.Clone(nodes)
			out[i] = replaced
			return out, true
		}
	}
	return nil, false
}

// Flatten lists node ids in pre-order.
func Flatten(tree []*ReviewNode) []string {
	ids := make([]string, 0)
	var walk func([]*ReviewNode)
	walk = func(nodes []*ReviewNode) {
		for _, n := range nodes {
			ids = append(ids, n.ID)
			walk(n.Replies)
		}
	}
	walk(tree)
	return ids
}

// CountNodes returns the number of nodes in the forest.
func CountNodes(tree []*ReviewNode) int {
	count := 0
	for _, n := range tree {
		count += 1 + CountNodes(n.Replies)
	}
	return count
}

// FindNode searches the forest depth-first for id.
func FindNode(tree []*ReviewNode, id string) *ReviewNode {
	for _, n := range tree {
		if n.ID == id {
			return n
		}
		if found := FindNode(n.Replies, id); found != nil {
			return found
		}
	}
	return nil
}
