package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runThreadRepositoryContract behaviour every ThreadRepository implementation must share.
// newRepo must return an empty store.
func runThreadRepositoryContract(t *testing.T, newRepo func(t *testing.T) ThreadRepository) {
	t.Run("GetOrCreateIsOrderIndependent", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		a, err := repo.GetOrCreateThread(ctx, "zoe", "adam")
		require.NoError(t, err)
		b, err := repo.GetOrCreateThread(ctx, "adam", "zoe")
		require.NoError(t, err)

		assert.Equal(t, a.ID, b.ID)
		assert.Equal(t, "adam", a.FirstPerson)
		assert.Equal(t, "zoe", a.SecondPerson)
		assert.Nil(t, a.LastMessage)
	})

	t.Run("GetOrCreateRejectsInvalidPair", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		_, err := repo.GetOrCreateThread(ctx, "adam", "adam")
		assert.ErrorIs(t, err, domain.ErrInvalidThread)
		_, err = repo.GetOrCreateThread(ctx, "", "adam")
		assert.ErrorIs(t, err, domain.ErrInvalidThread)
	})

	t.Run("GetOrCreateConcurrentConverges", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		const n = 16
		ids := make([]int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := "u1", "u2"
				if i%2 == 1 {
					a, b = b, a
				}
				th, err := repo.GetOrCreateThread(ctx, a, b)
				if assert.NoError(t, err) {
					ids[i] = th.ID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}

		threads, err := repo.ListThreadsForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, threads, 1)
	})

	t.Run("GetThreadMissing", func(t *testing.T) {
		_, err := newRepo(t).GetThread(context.Background(), 424242)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("AppendMessage", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		th, err := repo.GetOrCreateThread(ctx, "alice", "bob")
		require.NoError(t, err)

		m1, err := repo.AppendMessage(ctx, th.ID, "alice", "first")
		require.NoError(t, err)
		m2, err := repo.AppendMessage(ctx, th.ID, "bob", "second")
		require.NoError(t, err)

		assert.Greater(t, m2.ID, m1.ID)
		assert.False(t, m2.Timestamp.Before(m1.Timestamp))
		assert.Equal(t, th.ID, m2.ThreadID)
		assert.Equal(t, "bob", m2.SenderID)

		got, err := repo.GetThread(ctx, th.ID)
		require.NoError(t, err)
		assert.False(t, got.Updated.Before(m2.Timestamp))
		require.NotNil(t, got.LastMessage)
		assert.Equal(t, "second", got.LastMessage.Message)
		assert.Equal(t, "bob", got.LastMessage.UserID)

		last, err := repo.LastMessage(ctx, th.ID)
		require.NoError(t, err)
		assert.Equal(t, "second", last.Message)

		_, err = repo.AppendMessage(ctx, 999999, "alice", "lost")
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
		_, err = repo.AppendMessage(ctx, th.ID, "alice", "   ")
		assert.ErrorIs(t, err, domain.ErrEmptyBody)
	})

	t.Run("AppendMessageConcurrentIDsUnique", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		th, err := repo.GetOrCreateThread(ctx, "alice", "bob")
		require.NoError(t, err)

		const writers, each = 4, 10
		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < each; i++ {
					_, err := repo.AppendMessage(ctx, th.ID, "alice", fmt.Sprintf("w%d-%d", w, i))
					assert.NoError(t, err)
				}
			}(w)
		}
		wg.Wait()

		page, err := repo.ListMessages(ctx, th.ID, "", MaxPageSize)
		require.NoError(t, err)
		require.Len(t, page.Messages, writers*each)
		for i := 1; i < len(page.Messages); i++ {
			assert.Greater(t, page.Messages[i].ID, page.Messages[i-1].ID)
			assert.False(t, page.Messages[i].Timestamp.Before(page.Messages[i-1].Timestamp))
		}
	})

	t.Run("ListMessagesPagination", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		th, err := repo.GetOrCreateThread(ctx, "alice", "bob")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			_, err := repo.AppendMessage(ctx, th.ID, "alice", fmt.Sprintf("m%d", i))
			require.NoError(t, err)
		}

		var bodies []string
		cursor := ""
		pages := 0
		for {
			page, err := repo.ListMessages(ctx, th.ID, cursor, 2)
			require.NoError(t, err)
			pages++
			for _, m := range page.Messages {
				bodies = append(bodies, m.Body)
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, bodies)
		assert.Equal(t, 3, pages)

		empty, err := repo.ListMessages(ctx, th.ID, domain.EncodeCursor(1<<50), 2)
		require.NoError(t, err)
		assert.Empty(t, empty.Messages)
		assert.Empty(t, empty.NextCursor)

		_, err = repo.ListMessages(ctx, th.ID, "@@", 2)
		assert.ErrorIs(t, err, domain.ErrInvalidCursor)
		_, err = repo.ListMessages(ctx, 999999, "", 2)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("ListThreadsForUser", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		ab, err := repo.GetOrCreateThread(ctx, "alice", "bob")
		require.NoError(t, err)
		ac, err := repo.GetOrCreateThread(ctx, "alice", "carol")
		require.NoError(t, err)
		_, err = repo.GetOrCreateThread(ctx, "bob", "carol")
		require.NoError(t, err)

		// 部分 store 只有毫秒精度
		time.Sleep(5 * time.Millisecond)
		_, err = repo.AppendMessage(ctx, ab.ID, "bob", "bump")
		require.NoError(t, err)

		threads, err := repo.ListThreadsForUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, threads, 2)
		assert.Equal(t, ab.ID, threads[0].ID)
		assert.Equal(t, ac.ID, threads[1].ID)
		require.NotNil(t, threads[0].LastMessage)
		assert.Equal(t, "bump", threads[0].LastMessage.Message)
		assert.Nil(t, threads[1].LastMessage)

		none, err := repo.ListThreadsForUser(ctx, "dave")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
