package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/gh-triage/tests/testutil"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "k", []byte(`{"a":1}`)))

	entry, ok, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(entry.Data))
	require.False(t, entry.WrittenAt.IsZero())
}

func TestGetAbsentKey(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, ok, err := s.Get(context.Background(), "ns", "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetOverwritesAndRestamps(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })
	require.NoError(t, s.Set(ctx, "ns", "k", []byte("v1")))

	s.SetClock(func() time.Time { return base.Add(time.Hour) })
	require.NoError(t, s.Set(ctx, "ns", "k", []byte("v2")))

	entry, ok, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(entry.Data))
	require.True(t, entry.WrittenAt.Equal(base.Add(time.Hour)))
}

func TestRemoveDeletesOneEntry(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "ns", "b", []byte("2")))

	require.NoError(t, s.Remove(ctx, "ns", "a"))

	_, ok, err := s.Get(ctx, "ns", "a")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.Get(ctx, "ns", "b")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClearIsNamespaceScoped(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "one", "k", []byte("1")))
	require.NoError(t, s.Set(ctx, "two", "k", []byte("2")))

	require.NoError(t, s.Clear(ctx, "one"))

	_, ok, err := s.Get(ctx, "one", "k")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.Get(ctx, "two", "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKeysAreNamespaceIsolated(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "one", "k", []byte("1")))
	require.NoError(t, s.Set(ctx, "two", "k", []byte("2")))

	entry, ok, err := s.Get(ctx, "one", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(entry.Data))
}
