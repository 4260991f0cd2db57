package stowdav_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/memstore"
)

// closingStore counts Close calls on top of a memstore.
type closingStore struct {
	*memstore.Store
	closed atomic.Int32
}

func (c *closingStore) Close() error {
	c.closed.Add(1)
	return nil
}

// writeOnlyStore hides everything but Write from its capability set.
type writeOnlyStore struct {
	*memstore.Store
}

func (w writeOnlyStore) Info() stowdav.Capability {
	return stowdav.Capability{Name: "write-only", Write: true}
}

func newOperator(t *testing.T) *stowdav.Operator {
	t.Helper()
	op, err := stowdav.NewOperator(memstore.New())
	require.NoError(t, err)
	return op
}

func TestNewOperator_NilAccessor(t *testing.T) {
	t.Parallel()

	_, err := stowdav.NewOperator(nil)
	assert.ErrorIs(t, err, stowdav.ErrInvalidInput)
}

func TestOperator_RefCount(t *testing.T) {
	t.Parallel()

	acc := &closingStore{Store: memstore.New()}
	op, err := stowdav.NewOperator(acc)
	require.NoError(t, err)

	clone := op.Clone()
	assert.Same(t, op, clone)
	assert.Equal(t, int64(2), op.Refs())

	require.NoError(t, clone.Close())
	assert.Equal(t, int32(0), acc.closed.Load())

	require.NoError(t, op.Write(context.Background(), "a.txt", []byte("x"), stowdav.OpWrite{}))

	require.NoError(t, op.Close())
	assert.Equal(t, int32(1), acc.closed.Load())

	require.NoError(t, op.Close())
	assert.Equal(t, int32(1), acc.closed.Load())

	_, err = op.Stat(context.Background(), "a.txt")
	assert.ErrorIs(t, err, stowdav.ErrClosed)
}

func TestOperator_CloneAfterClose(t *testing.T) {
	t.Parallel()

	acc := &closingStore{Store: memstore.New()}
	op, err := stowdav.NewOperator(acc)
	require.NoError(t, err)
	require.NoError(t, op.Close())

	clone := op.Clone()
	assert.Equal(t, int64(0), clone.Refs())

	err = clone.Write(context.Background(), "a.txt", []byte("x"), stowdav.OpWrite{})
	require.ErrorIs(t, err, stowdav.ErrClosed)
	_, err = clone.Stat(context.Background(), "a.txt")
	require.ErrorIs(t, err, stowdav.ErrClosed)

	require.NoError(t, clone.Close())
	assert.Equal(t, int64(0), op.Refs())
	assert.Equal(t, int32(1), acc.closed.Load())
}

func TestOperator_ConcurrentClones(t *testing.T) {
	t.Parallel()

	acc := &closingStore{Store: memstore.New()}
	op, err := stowdav.NewOperator(acc)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 100 {
		c := op.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.List(context.Background(), "")
			assert.NoError(t, c.Close())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), acc.closed.Load())
	require.NoError(t, op.Close())
	assert.Equal(t, int32(1), acc.closed.Load())
}

func TestOperator_WriteRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	op := newOperator(t)

	require.NoError(t, op.Write(ctx, "/docs/a.txt", []byte("hello"), stowdav.OpWrite{ContentType: "text/plain"}))

	data, err := op.Read(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	meta, err := op.Stat(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
}

func TestOperator_Append(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	op := newOperator(t)

	require.NoError(t, op.Append(ctx, "log", []byte("a")))
	require.NoError(t, op.Append(ctx, "log", []byte("b")))

	data, err := op.Read(ctx, "log")
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestOperator_RootStat(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"", "/"} {
		meta, err := newOperator(t).Stat(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, meta.IsDir())
	}
}

func TestOperator_InvalidPaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	op := newOperator(t)

	assert.ErrorIs(t, op.Write(ctx, "a/../b", nil, stowdav.OpWrite{}), stowdav.ErrInvalidInput)
	assert.ErrorIs(t, op.Write(ctx, "/", nil, stowdav.OpWrite{}), stowdav.ErrInvalidInput)
	assert.ErrorIs(t, op.Delete(ctx, ""), stowdav.ErrInvalidInput)
	assert.ErrorIs(t, op.CreateDir(ctx, "a//b"), stowdav.ErrInvalidInput)

	_, err := op.Reader(ctx, "a.txt", stowdav.OpRead{Offset: -1})
	assert.ErrorIs(t, err, stowdav.ErrInvalidInput)
}

func TestOperator_DeleteMissing(t *testing.T) {
	t.Parallel()

	assert.NoError(t, newOperator(t).Delete(context.Background(), "missing.txt"))
}

func TestOperator_Capabilities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	op, err := stowdav.NewOperator(writeOnlyStore{Store: memstore.New()})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("x"), stowdav.OpWrite{}))

	_, err = op.Read(ctx, "a.txt")
	assert.ErrorIs(t, err, stowdav.ErrUnsupported)
	_, err = op.List(ctx, "")
	assert.ErrorIs(t, err, stowdav.ErrUnsupported)
	_, err = op.Stat(ctx, "a.txt")
	assert.ErrorIs(t, err, stowdav.ErrUnsupported)
	assert.ErrorIs(t, op.Append(ctx, "a.txt", []byte("y")), stowdav.ErrUnsupported)
	assert.ErrorIs(t, op.Delete(ctx, "a.txt"), stowdav.ErrUnsupported)
	assert.ErrorIs(t, op.CreateDir(ctx, "d"), stowdav.ErrUnsupported)
}

func TestOperator_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := newOperator(t)
	assert.ErrorIs(t, op.Write(ctx, "a.txt", nil, stowdav.OpWrite{}), context.Canceled)
}
