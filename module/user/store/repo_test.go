package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"PPSocial/module/user/model"
	"PPSocial/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newUser(name string) *model.User {
	return &model.User{Username: name, Role: model.RoleUser, Followers: []string{}, Following: []string{}, CreateTime: time.Now().UTC()}
}

func runRepoSuite(t *testing.T, newRepo func(t *testing.T) Repo) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		r := newRepo(t)
		u := newUser("Alice")
		require.NoError(t, r.Create(ctx, u))
		require.False(t, u.ID.IsZero())

		got, err := r.FindByID(ctx, u.IDHex())
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Username)

		got, err = r.FindByUsername(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, u.IDHex(), got.IDHex())

		assert.ErrorIs(t, r.Create(ctx, newUser("Alice")), errs.ErrRecordExists)
		_, err = r.FindByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, errs.ErrUserNotFound)
		_, err = r.FindByID(ctx, "not-an-id")
		assert.ErrorIs(t, err, errs.ErrUserNotFound)
	})

	t.Run("follow is idempotent", func(t *testing.T) {
		r := newRepo(t)
		a, b := newUser("a"), newUser("b")
		require.NoError(t, r.Create(ctx, a))
		require.NoError(t, r.Create(ctx, b))

		ok, err := r.Follow(ctx, a.IDHex(), b.IDHex())
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = r.Follow(ctx, a.IDHex(), b.IDHex())
		require.NoError(t, err)
		assert.False(t, ok)

		ga, _ := r.FindByID(ctx, a.IDHex())
		gb, _ := r.FindByID(ctx, b.IDHex())
		assert.Equal(t, []string{b.IDHex()}, ga.Following)
		assert.Equal(t, []string{a.IDHex()}, gb.Followers)

		ok, err = r.Unfollow(ctx, a.IDHex(), b.IDHex())
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = r.Unfollow(ctx, a.IDHex(), b.IDHex())
		require.NoError(t, err)
		assert.False(t, ok)
		gb, _ = r.FindByID(ctx, b.IDHex())
		assert.Empty(t, gb.Followers)
	})

	t.Run("search and briefs", func(t *testing.T) {
		r := newRepo(t)
		var ids []string
		for _, n := range []string{"carol", "Caroline", "dave", "car.x"} {
			u := newUser(n)
			require.NoError(t, r.Create(ctx, u))
			ids = append(ids, u.IDHex())
		}
		hits, err := r.Search(ctx, "car", 0, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 3)

		// 正则元字符按字面匹配
		hits, err = r.Search(ctx, "car.", 0, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "car.x", hits[0].Username)

		briefs, err := r.FindBriefs(ctx, []string{ids[2], "missing", ids[0]})
		require.NoError(t, err)
		require.Len(t, briefs, 2)
		assert.Equal(t, "dave", briefs[0].Username)
		assert.Equal(t, "carol", briefs[1].Username)
	})

	t.Run("sample", func(t *testing.T) {
		r := newRepo(t)
		me := newUser("me")
		require.NoError(t, r.Create(ctx, me))
		for i := 0; i < 3; i++ {
			require.NoError(t, r.Create(ctx, newUser(fmt.Sprintf("s%d", i))))
		}
		got, err := r.Sample(ctx, me.IDHex(), 5)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		for _, u := range got {
			assert.NotEqual(t, me.IDHex(), u.IDHex())
		}
	})
}

func TestMemoryRepo(t *testing.T) {
	runRepoSuite(t, func(*testing.T) Repo { return NewMemoryRepo() })
}

func TestMongoRepo(t *testing.T) {
	uri := os.Getenv("PPS_TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://127.0.0.1:27017"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(time.Second))
	if err == nil {
		err = cli.Ping(ctx, nil)
	}
	if err != nil {
		t.Skipf("mongo not available: %v", err)
	}
	t.Cleanup(func() { _ = cli.Disconnect(context.Background()) })

	runRepoSuite(t, func(t *testing.T) Repo {
		db := cli.Database(fmt.Sprintf("pps_user_test_%d", time.Now().UnixNano()))
		require.NoError(t, EnsureIndexes(context.Background(), db))
		t.Cleanup(func() { _ = db.Drop(context.Background()) })
		return NewMongoRepo(db)
	})
}
