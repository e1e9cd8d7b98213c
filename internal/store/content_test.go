package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypath/internal/cas"
)

// TestContent_PutIdempotent verifies duplicate writes add no rows.
func TestContent_PutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := cas.NewStore(s)

	a1, err := c.Put(ctx, []byte("hello"), "text/plain")
	require.NoError(t, err)
	a2, err := c.Put(ctx, []byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	n, err := s.ContentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestContent_PutIfAbsentReportsCreation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	b := cas.Blob{Address: cas.ComputeAddress([]byte("x")), Data: []byte("x"), Size: 1, Encoding: cas.EncodingIdentity}

	created, err := s.PutIfAbsent(ctx, b)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.PutIfAbsent(ctx, b)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestContent_RoundTripCompressed(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := cas.NewStore(s, cas.WithCompressThreshold(16))

	data := bytes.Repeat([]byte("abc"), 500)
	addr, err := c.Put(ctx, data, "text/plain")
	require.NoError(t, err)

	raw, err := s.Load(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, cas.EncodingZstd, raw.Encoding)
	assert.Equal(t, len(data), raw.Size)

	obj, err := c.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "text/plain", obj.ContentType)
}

func TestContent_LoadMissing(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Load(context.Background(), cas.ComputeAddress([]byte("nope")))
	assert.True(t, errors.Is(err, cas.ErrNotFound))
}

// TestContent_ScanPrefixCaseSensitive verifies GLOB matching does not fold case.
func TestContent_ScanPrefixCaseSensitive(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, addr := range []string{"abc1", "abc2", "ABC3", "abd4"} {
		_, err := s.PutIfAbsent(ctx, cas.Blob{Address: addr, Data: []byte(addr), Size: len(addr)})
		require.NoError(t, err)
	}

	got, err := s.ScanPrefix(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc1", "abc2"}, got)

	got, err = s.ScanPrefix(ctx, "zzz")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestContent_ListByPrefixEmpty(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := cas.NewStore(s)
	_, err := c.Put(ctx, []byte("x"), "")
	require.NoError(t, err)

	for _, p := range []string{"", "/"} {
		got, err := c.ListByPrefix(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []string{}, got)
	}
}
