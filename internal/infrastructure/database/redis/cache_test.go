package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/PlotAtlas/internal/testutil"
	pkgerrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

type cluster struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CacheMockSuite drives the cache against redismock for exact command checks.
type CacheMockSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheMockSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewRedisCache(NewClientFrom(db, testutil.NewNopLogger()), nil, WithPrefix("test:"), WithTTLJitter(0))
}

func (s *CacheMockSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *CacheMockSuite) TestGet_Hit() {
	want := cluster{Name: "Jeddah", Count: 2}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:clusters").SetVal(string(data))

	var got cluster
	s.Require().NoError(s.cache.Get(context.Background(), "clusters", &got))
	s.Equal(want, got)
}

func (s *CacheMockSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:clusters").RedisNil()

	var got cluster
	err := s.cache.Get(context.Background(), "clusters", &got)
	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsNotFound(err))
}

func (s *CacheMockSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:clusters").SetErr(stderrors.New("connection refused"))

	var got cluster
	err := s.cache.Get(context.Background(), "clusters", &got)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheMockSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:clusters").SetVal("{not json")

	var got cluster
	err := s.cache.Get(context.Background(), "clusters", &got)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheMockSuite) TestSetBytes_UsesExactTTL() {
	s.mock.ExpectSet("test:icon", []byte("png"), time.Minute).SetVal("OK")
	s.NoError(s.cache.SetBytes(context.Background(), "icon", []byte("png"), time.Minute))
}

func (s *CacheMockSuite) TestDelete() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "a", "b"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheMockSuite) TestDeleteByPrefix() {
	s.mock.ExpectScan(0, "test:atlas:*", 100).SetVal([]string{"test:atlas:clusters:v1", "test:atlas:plots:v1:Jeddah"}, 7)
	s.mock.ExpectDel("test:atlas:clusters:v1", "test:atlas:plots:v1:Jeddah").SetVal(2)
	s.mock.ExpectScan(7, "test:atlas:*", 100).SetVal(nil, 0)

	n, err := s.cache.DeleteByPrefix(context.Background(), "atlas:")
	s.NoError(err)
	s.Equal(int64(2), n)
}

func TestCacheMockSuite(t *testing.T) {
	suite.Run(t, new(CacheMockSuite))
}

func newMiniCache(t *testing.T) (*miniredis.Miniredis, *Client, Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClientFrom(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client, NewRedisCache(client, nil, WithPrefix("t:"))
}

func TestGetOrSet_LoadsOnceAndCaches(t *testing.T) {
	mr, _, cache := newMiniCache(t)
	ctx := context.Background()
	var loads atomic.Int32
	loader := func(context.Context) (interface{}, error) {
		loads.Add(1)
		time.Sleep(10 * time.Millisecond)
		return cluster{Name: "Riyadh", Count: 3}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got cluster
			assert.NoError(t, cache.GetOrSet(ctx, "k", &got, time.Minute, loader))
			assert.Equal(t, "Riyadh", got.Name)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, loads.Load(), int32(2))

	var got cluster
	require.NoError(t, cache.GetOrSet(ctx, "k", &got, time.Minute, loader))
	assert.Equal(t, 3, got.Count)
	before := loads.Load()
	require.NoError(t, cache.GetOrSet(ctx, "k", &got, time.Minute, loader))
	assert.Equal(t, before, loads.Load())

	ttl := mr.TTL("t:k")
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 7)
}

func TestGetOrSet_LoaderError(t *testing.T) {
	_, _, cache := newMiniCache(t)
	boom := stderrors.New("db down")
	var got cluster
	err := cache.GetOrSet(context.Background(), "k", &got, 0, func(context.Context) (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGetOrSet_SurvivesCacheOutage(t *testing.T) {
	mr, _, cache := newMiniCache(t)
	mr.Close()
	var got cluster
	err := cache.GetOrSet(context.Background(), "k", &got, 0, func(context.Context) (interface{}, error) {
		return cluster{Name: "Abha"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Abha", got.Name)
}

func TestClient_PingAndClose(t *testing.T) {
	_, client, cache := newMiniCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Ping(ctx))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, ErrClientClosed, client.Ping(ctx))
	_, err := cache.GetBytes(ctx, "x")
	assert.Equal(t, ErrClientClosed, err)
}

func TestMutex_ExclusiveOwnership(t *testing.T) {
	_, client, _ := newMiniCache(t)
	ctx := context.Background()
	a := NewMutex(client, "t:", "sprites", time.Second)
	b := NewMutex(client, "t:", "sprites", time.Second)
	assert.Equal(t, "t:lock:sprites", a.Key())

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ErrLockNotAcquired, b.Lock(ctx, 2, time.Millisecond))
	assert.Equal(t, ErrLockNotHeld, b.Unlock(ctx))

	extended, err := a.Extend(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, extended)

	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, b.Lock(ctx, 1, time.Millisecond))
	require.NoError(t, b.Unlock(ctx))
}

//Personal.AI order the ending
