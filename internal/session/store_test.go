package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("追加与读取按时间顺序", func(t *testing.T) {
		store := NewMemoryStore(0)
		for i := 0; i < 3; i++ {
			err := store.Append(ctx, "s1", Exchange{
				Input:     fmt.Sprintf("问题%d", i),
				Output:    fmt.Sprintf("回答%d", i),
				Timestamp: time.Now(),
			})
			require.NoError(t, err)
		}

		history, err := store.History(ctx, "s1", 0)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "问题0", history[0].Input)
		assert.Equal(t, "问题2", history[2].Input)
	})

	t.Run("limit只返回最近几轮", func(t *testing.T) {
		store := NewMemoryStore(0)
		for i := 0; i < 5; i++ {
			require.NoError(t, store.Append(ctx, "s1", Exchange{Input: fmt.Sprintf("q%d", i)}))
		}

		history, err := store.History(ctx, "s1", 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "q3", history[0].Input)
		assert.Equal(t, "q4", history[1].Input)
	})

	t.Run("超过maxSize时淘汰最旧记录", func(t *testing.T) {
		store := NewMemoryStore(2)
		for i := 0; i < 4; i++ {
			require.NoError(t, store.Append(ctx, "s1", Exchange{Input: fmt.Sprintf("q%d", i)}))
		}

		history, err := store.History(ctx, "s1", 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "q2", history[0].Input)
	})

	t.Run("会话之间互不影响", func(t *testing.T) {
		store := NewMemoryStore(0)
		require.NoError(t, store.Append(ctx, "a", Exchange{Input: "来自a"}))
		require.NoError(t, store.Append(ctx, "b", Exchange{Input: "来自b"}))

		historyA, err := store.History(ctx, "a", 0)
		require.NoError(t, err)
		require.Len(t, historyA, 1)
		assert.Equal(t, "来自a", historyA[0].Input)
	})

	t.Run("未知会话返回空历史", func(t *testing.T) {
		store := NewMemoryStore(0)
		history, err := store.History(ctx, "nope", 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("History返回副本不受后续写入影响", func(t *testing.T) {
		store := NewMemoryStore(0)
		require.NoError(t, store.Append(ctx, "s1", Exchange{Input: "q0"}))
		history, err := store.History(ctx, "s1", 0)
		require.NoError(t, err)
		require.NoError(t, store.Append(ctx, "s1", Exchange{Input: "q1"}))
		assert.Len(t, history, 1)
	})
}
