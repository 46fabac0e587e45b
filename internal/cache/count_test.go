package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	sql := "SELECT COUNT(*) FROM (SELECT main.id FROM t AS main WHERE main.id = $1) AS counted"
	a := Key(1, sql, []any{int64(1)})
	assert.Equal(t, a, Key(1, sql, []any{int64(1)}))
	assert.NotEqual(t, a, Key(2, sql, []any{int64(1)}), "version is part of the key")
	assert.NotEqual(t, a, Key(1, sql, []any{"1"}), "argument type is part of the key")
	assert.NotEqual(t, a, Key(1, sql, []any{int64(2)}))
	assert.Regexp(t, `^crudapi:count:1:[0-9a-f]{16}$`, a)
}

func TestNilCacheComputes(t *testing.T) {
	c := NewCountCache(nil, 0)
	require.Nil(t, c)

	calls := 0
	for i := 0; i < 2; i++ {
		n, err := c.Count(context.Background(), "q", nil, func(context.Context) (int64, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	}
	assert.Equal(t, 2, calls)

	c.Invalidate(context.Background())
	assert.NoError(t, c.Flush(context.Background()))
}
