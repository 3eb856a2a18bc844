package contexttree

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
)

// recordingLogger captures warnings emitted during merges.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(msg, args...))
}

// ---------------------------------------------------------------------------
// Node reads and writes
// ---------------------------------------------------------------------------

func TestNode_ReadThrough(t *testing.T) {
	tree := NewTree("root")
	root := tree.Root()
	root.Set("shared", "root-value")
	root.Set("shadowed", "from-root")

	child, err := tree.BuildSubContext(root, "child", map[string]any{"seed": "hello"})
	require.NoError(t, err)

	t.Run("LocalHit", func(t *testing.T) {
		v, ok := child.Get("seed")
		require.True(t, ok)
		assert.Equal(t, "hello", v)
	})

	t.Run("ParentFallback", func(t *testing.T) {
		v, ok := child.Get("shared")
		require.True(t, ok)
		assert.Equal(t, "root-value", v)
	})

	t.Run("LocalShadowsParent", func(t *testing.T) {
		child.Set("shadowed", "from-child")

		v, ok := child.Get("shadowed")
		require.True(t, ok)
		assert.Equal(t, "from-child", v)

		// The parent copy is untouched.
		v, ok = root.GetLocal("shadowed")
		require.True(t, ok)
		assert.Equal(t, "from-root", v)
	})

	t.Run("GetLocalNoFallback", func(t *testing.T) {
		_, ok := child.GetLocal("shared")
		assert.False(t, ok)
	})

	t.Run("Miss", func(t *testing.T) {
		_, ok := child.Get("absent")
		assert.False(t, ok)
	})
}

func TestNode_Usage(t *testing.T) {
	tree := NewTree("root")
	node := tree.Root()

	node.AddUsage(100, 2)
	node.AddUsage(50, 1)

	tokens, facts := node.Usage()
	assert.Equal(t, 150, tokens)
	assert.Equal(t, 3, facts)
}

func TestNode_Status(t *testing.T) {
	tree := NewTree("root")
	node := tree.Root()

	assert.Equal(t, core.TaskPending, node.Status())

	node.SetStatus(core.TaskRunning)
	assert.Equal(t, core.TaskRunning, node.Status())
}

// ---------------------------------------------------------------------------
// Tree structure
// ---------------------------------------------------------------------------

func TestTree_BuildSubContext(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		tree := NewTree("root")

		child, err := tree.BuildSubContext(tree.Root(), "child", nil)
		require.NoError(t, err)

		assert.Equal(t, "child", child.TaskID())
		assert.Same(t, tree.Root(), child.Parent())
		assert.Len(t, tree.Root().Children(), 1)

		got, ok := tree.Node("child")
		require.True(t, ok)
		assert.Same(t, child, got)
	})

	t.Run("DuplicateTaskID", func(t *testing.T) {
		tree := NewTree("root")

		_, err := tree.BuildSubContext(tree.Root(), "child", nil)
		require.NoError(t, err)

		_, err = tree.BuildSubContext(tree.Root(), "child", nil)
		assert.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// Merge-back
// ---------------------------------------------------------------------------

func TestTree_MergeSubContext(t *testing.T) {
	t.Run("CopiesLocalKeysAndUsage", func(t *testing.T) {
		tree := NewTree("root")
		root := tree.Root()
		root.AddUsage(10, 1)

		child, err := tree.BuildSubContext(root, "child", nil)
		require.NoError(t, err)
		child.Set("result", "done")
		child.AddUsage(40, 2)

		require.NoError(t, tree.MergeSubContext(child))

		v, ok := root.GetLocal("result")
		require.True(t, ok)
		assert.Equal(t, "done", v)

		tokens, facts := root.Usage()
		assert.Equal(t, 50, tokens)
		assert.Equal(t, 3, facts)

		// Child is detached from the tree.
		assert.Empty(t, root.Children())
		_, ok = tree.Node("child")
		assert.False(t, ok)
	})

	t.Run("ConflictLastWriterWins", func(t *testing.T) {
		logger := &recordingLogger{}
		tree := NewTree("root", func(o *Options) { o.Logger = logger })
		root := tree.Root()
		root.Set("answer", "old")

		child, err := tree.BuildSubContext(root, "child", nil)
		require.NoError(t, err)
		child.Set("answer", "new")

		require.NoError(t, tree.MergeSubContext(child))

		v, _ := root.GetLocal("answer")
		assert.Equal(t, "new", v)
		require.Len(t, logger.warns, 1)
		assert.Contains(t, logger.warns[0], "answer")
	})

	t.Run("UncomparableValuesMerge", func(t *testing.T) {
		logger := &recordingLogger{}
		tree := NewTree("root", func(o *Options) { o.Logger = logger })
		root := tree.Root()
		root.Set("shared", map[string]any{"version": 1})

		child, err := tree.BuildSubContext(root, "child", nil)
		require.NoError(t, err)
		child.Set("shared", map[string]any{"version": 2})

		require.NoError(t, tree.MergeSubContext(child))

		v, _ := root.GetLocal("shared")
		assert.Equal(t, map[string]any{"version": 2}, v)
		require.Len(t, logger.warns, 1)
		assert.Contains(t, logger.warns[0], "shared")
	})

	t.Run("EqualMapValueNoConflict", func(t *testing.T) {
		logger := &recordingLogger{}
		tree := NewTree("root", func(o *Options) { o.Logger = logger })
		root := tree.Root()
		root.Set("shared", map[string]any{"version": 1})

		child, err := tree.BuildSubContext(root, "child", nil)
		require.NoError(t, err)
		child.Set("shared", map[string]any{"version": 1})

		require.NoError(t, tree.MergeSubContext(child))
		assert.Empty(t, logger.warns)
	})

	t.Run("MergeOnce", func(t *testing.T) {
		tree := NewTree("root")
		child, err := tree.BuildSubContext(tree.Root(), "child", nil)
		require.NoError(t, err)

		require.NoError(t, tree.MergeSubContext(child))
		assert.Error(t, tree.MergeSubContext(child))
	})

	t.Run("RootCannotMerge", func(t *testing.T) {
		tree := NewTree("root")
		assert.Error(t, tree.MergeSubContext(tree.Root()))
	})
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func TestSnapshotRestore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		src := NewTree("root")
		src.Root().Set("plan", "three steps")
		src.Root().AddUsage(25, 1)
		src.Root().SetStatus(core.TaskRunning)

		data, err := src.Root().Snapshot()
		require.NoError(t, err)

		dst := NewTree("root")
		node, err := dst.Restore(data)
		require.NoError(t, err)

		v, ok := node.GetLocal("plan")
		require.True(t, ok)
		assert.Equal(t, "three steps", v)
		tokens, facts := node.Usage()
		assert.Equal(t, 25, tokens)
		assert.Equal(t, 1, facts)
		assert.Equal(t, core.TaskRunning, node.Status())
	})

	t.Run("ChildReattachesToParent", func(t *testing.T) {
		src := NewTree("root")
		child, err := src.BuildSubContext(src.Root(), "child", map[string]any{"k": "v"})
		require.NoError(t, err)

		data, err := child.Snapshot()
		require.NoError(t, err)

		dst := NewTree("root")
		restored, err := dst.Restore(data)
		require.NoError(t, err)

		assert.Same(t, dst.Root(), restored.Parent())
		assert.Len(t, dst.Root().Children(), 1)

		v, ok := restored.Get("k")
		require.True(t, ok)
		assert.Equal(t, "v", v)
	})

	t.Run("MissingParent", func(t *testing.T) {
		src := NewTree("root")
		child, err := src.BuildSubContext(src.Root(), "child", nil)
		require.NoError(t, err)

		data, err := child.Snapshot()
		require.NoError(t, err)

		dst := NewTree("other")
		_, err = dst.Restore(data)
		assert.Error(t, err)
	})

	t.Run("InvalidData", func(t *testing.T) {
		tree := NewTree("root")
		_, err := tree.Restore([]byte("{"))
		assert.Error(t, err)
	})
}
