package domain

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func rec(id string, parent *string, createdAt time.Time) ReviewRecord {
	return ReviewRecord{ID: id, ParentID: parent, CreatedAt: createdAt, ProductID: "prod-1"}
}

// shape renders a forest as nested ids so trees can be compared with cmp.
type shape struct {
	ID      string
	Replies []shape
}

func shapeOf(tree []*ReviewNode) []shape {
	out := make([]shape, 0, len(tree))
	for _, n := range tree {
		out = append(out, shape{ID: n.ID, Replies: shapeOf(n.Replies)})
	}
	return out
}

// ============================================================================
// BuildTree Tests
// ============================================================================

func TestBuildTree_Scenario(t *testing.T) {
	tree := BuildTree([]ReviewRecord{
		rec("1", nil, day(2)),
		rec("2", strPtr("1"), day(3)),
		rec("3", nil, day(1)),
	})

	want := []shape{
		{ID: "1", Replies: []shape{{ID: "2", Replies: []shape{}}}},
		{ID: "3", Replies: []shape{}},
	}
	if diff := cmp.Diff(want, shapeOf(tree)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTree_PreservesFields(t *testing.T) {
	author := &Author{UserID: "u-1", FullName: "Ayse Yilmaz", Role: RoleCustomer}
	in := ReviewRecord{
		ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 4,
		Comment: "fresh tomatoes", CreatedAt: day(5), Author: author,
	}

	tree := BuildTree([]ReviewRecord{in})
	require.Len(t, tree, 1)
	assert.Equal(t, in, tree[0].ReviewRecord)
	assert.NotNil(t, tree[0].Replies)
	assert.Empty(t, tree[0].Replies)
}

func TestBuildTree_Empty(t *testing.T) {
	tree := BuildTree(nil)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestBuildTree_OrphanBecomesRoot(t *testing.T) {
	tree := BuildTree([]ReviewRecord{
		rec("1", nil, day(1)),
		rec("2", strPtr("missing"), day(2)),
	})

	assert.Equal(t, []string{"2", "1"}, Flatten(tree))
	assert.Len(t, tree, 2)
}

func TestBuildTree_SelfParentBecomesRoot(t *testing.T) {
	tree := BuildTree([]ReviewRecord{rec("1", strPtr("1"), day(1))})
	require.Len(t, tree, 1)
	assert.Equal(t, "1", tree[0].ID)
	assert.Empty(t, tree[0].Replies)
}

func TestBuildTree_CycleKeepsEveryRecord(t *testing.T) {
	tree := BuildTree([]ReviewRecord{
		rec("a", strPtr("b"), day(1)),
		rec("b", strPtr("a"), day(2)),
	})
	assert.ElementsMatch(t, []string{"a", "b"}, Flatten(tree))
}

func TestBuildTree_RepliesAscendingRootsDescending(t *testing.T) {
	tree := BuildTree([]ReviewRecord{
		rec("r-old", nil, day(1)),
		rec("c-late", strPtr("r-new"), day(9)),
		rec("r-new", nil, day(5)),
		rec("c-early", strPtr("r-new"), day(6)),
		rec("cc", strPtr("c-early"), day(7)),
	})

	want := []shape{
		{ID: "r-new", Replies: []shape{
			{ID: "c-early", Replies: []shape{{ID: "cc", Replies: []shape{}}}},
			{ID: "c-late", Replies: []shape{}},
		}},
		{ID: "r-old", Replies: []shape{}},
	}
	if diff := cmp.Diff(want, shapeOf(tree)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTree_TiesKeepInputOrder(t *testing.T) {
	tree := BuildTree([]ReviewRecord{
		rec("a", nil, day(1)),
		rec("b", nil, day(1)),
		rec("x", strPtr("a"), day(2)),
		rec("y", strPtr("a"), day(2)),
	})
	assert.Equal(t, []string{"a", "x", "y", "b"}, Flatten(tree))
}

func TestBuildTree_ZeroTimestampSortsOldest(t *testing.T) {
	tree := BuildTree([]ReviewRecord{
		rec("zero", nil, time.Time{}),
		rec("dated", nil, day(1)),
	})
	assert.Equal(t, []string{"dated", "zero"}, Flatten(tree))
}

func TestBuildTree_DoesNotModifyInput(t *testing.T) {
	in := []ReviewRecord{rec("1", nil, day(1)), rec("2", strPtr("1"), day(2))}
	snapshot := append([]ReviewRecord(nil), in...)
	_ = BuildTree(in)
	assert.Equal(t, snapshot, in)
}

// randomForest produces n records where every parent id refers to an
// earlier record, so the input is always a well-formed forest.
func randomForest(r *rand.Rand, n int) []ReviewRecord {
	records := make([]ReviewRecord, 0, n)
	for i := 0; i < n; i++ {
		var parent *string
		if i > 0 && r.IntN(3) > 0 {
			parent = strPtr(fmt.Sprintf("r%d", r.IntN(i)))
		}
		records = append(records, rec(fmt.Sprintf("r%d", i), parent, day(1).Add(time.Duration(r.IntN(500))*time.Hour)))
	}
	r.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	return records
}

func TestBuildTree_RoundTripAndOrdering(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 42))
	for iter := 0; iter < 50; iter++ {
		records := randomForest(r, 1+r.IntN(40))
		tree := BuildTree(records)

		want := make([]string, 0, len(records))
		for _, rc := range records {
			want = append(want, rc.ID)
		}
		got := Flatten(tree)
		sort.Strings(want)
		sort.Strings(got)
		require.Equal(t, want, got)
		require.Equal(t, len(records), CountNodes(tree))

		for i := 1; i < len(tree); i++ {
			require.False(t, tree[i].CreatedAt.After(tree[i-1].CreatedAt), "roots must be newest first")
		}
		var check func([]*ReviewNode)
		check = func(nodes []*ReviewNode) {
			for _, n := range nodes {
				for i := 1; i < len(n.Replies); i++ {
					require.False(t, n.Replies[i].CreatedAt.Before(n.Replies[i-1].CreatedAt), "replies must be oldest first")
				}
				for _, c := range n.Replies {
					require.NotNil(t, c.ParentID)
					require.Equal(t, n.ID, *c.ParentID)
				}
				check(n.Replies)
			}
		}
		check(tree)
	}
}

// ============================================================================
// InsertNode Tests
// ============================================================================

func sampleTree() []*ReviewNode {
	return BuildTree([]ReviewRecord{
		rec("1", nil, day(2)),
		rec("2", strPtr("1"), day(3)),
		rec("3", nil, day(1)),
		rec("4", strPtr("2"), day(4)),
	})
}

func TestInsertNode_RootIsPrepended(t *testing.T) {
	tree := sampleTree()
	node := NewReviewNode(rec("new", nil, day(10)))

	out := InsertNode(tree, node)

	require.Len(t, out, len(tree)+1)
	assert.Same(t, node, out[0])
	for i := range tree {
		assert.Same(t, tree[i], out[i+1])
	}
	assert.Len(t, tree, 2)
}

func TestInsertNode_RootDoesNotResort(t *testing.T) {
	tree := sampleTree()
	out := InsertNode(tree, NewReviewNode(rec("old", nil, day(0))))
	assert.Equal(t, "old", out[0].ID)
}

func TestInsertNode_ReplyAppendedToDeepParent(t *testing.T) {
	tree := sampleTree()
	before := shapeOf(tree)
	node := NewReviewNode(rec("5", strPtr("2"), day(11)))

	out := InsertNode(tree, node)

	want := []shape{
		{ID: "1", Replies: []shape{{ID: "2", Replies: []shape{
			{ID: "4", Replies: []shape{}},
			{ID: "5", Replies: []shape{}},
		}}}},
		{ID: "3", Replies: []shape{}},
	}
	if diff := cmp.Diff(want, shapeOf(out)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, shapeOf(tree)); diff != "" {
		t.Errorf("input tree was mutated (-before +after):\n%s", diff)
	}
}

func TestInsertNode_CopiesPathSharesRest(t *testing.T) {
	tree := sampleTree()
	out := InsertNode(tree, NewReviewNode(rec("5", strPtr("2"), day(11))))

	assert.NotSame(t, tree[0], out[0], "ancestor must be copied")
	assert.NotSame(t, tree[0].Replies[0], out[0].Replies[0], "parent must be copied")
	assert.Same(t, tree[1], out[1], "untouched root must be shared")
	assert.Same(t, tree[0].Replies[0].Replies[0], out[0].Replies[0].Replies[0], "existing sibling must be shared")
}

func TestInsertNode_MissingParentPromotedToRoot(t *testing.T) {
	tree := sampleTree()
	node := NewReviewNode(rec("lost", strPtr("nowhere"), day(12)))

	out := InsertNode(tree, node)

	require.Len(t, out, 3)
	assert.Same(t, node, out[0])
	assert.Equal(t, CountNodes(tree)+1, CountNodes(out))
}

func TestInsertNode_EmptyTree(t *testing.T) {
	out := InsertNode(nil, NewReviewNode(rec("1", nil, day(1))))
	assert.Equal(t, []string{"1"}, Flatten(out))
}

func TestInsertNode_RootLeavesRepliesUntouched(t *testing.T) {
	tree := sampleTree()
	before := shapeOf(tree)
	out := InsertNode(tree, NewReviewNode(rec("n", nil, day(20))))
	if diff := cmp.Diff(before, shapeOf(out[1:])); diff != "" {
		t.Errorf("existing nodes changed (-want +got):\n%s", diff)
	}
}

func TestFindNode(t *testing.T) {
	tree := sampleTree()
	require.NotNil(t, FindNode(tree, "4"))
	assert.Equal(t, "4", FindNode(tree, "4").ID)
	assert.Nil(t, FindNode(tree, "nope"))
}
