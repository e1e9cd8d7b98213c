package cas

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns every Backend implementation under test.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return map[string]Backend{
		"memory": NewMemory(),
		"bolt":   b,
	}
}

// TestComputeAddress_Shape verifies address length and alphabet.
func TestComputeAddress_Shape(t *testing.T) {
	addr := ComputeAddress([]byte("hello"))
	assert.Len(t, addr, AddressLength)
	assert.True(t, IsAddress(addr))
	assert.Equal(t, addr, ComputeAddress([]byte("hello")))
	assert.NotEqual(t, addr, ComputeAddress([]byte("hello!")))
}

func TestIsAddress(t *testing.T) {
	addr := ComputeAddress([]byte("x"))
	assert.True(t, IsAddress(addr))
	assert.False(t, IsAddress(addr[:42]))
	assert.False(t, IsAddress(addr+"a"))
	assert.False(t, IsAddress(strings.Repeat("=", AddressLength)))
	assert.False(t, IsAddress(""))
}

func TestParsePath(t *testing.T) {
	addr := ComputeAddress([]byte("x"))

	got, ok := ParsePath("/" + addr + ".html")
	require.True(t, ok)
	assert.Equal(t, addr, got)

	got, ok = ParsePath(addr)
	require.True(t, ok)
	assert.Equal(t, addr, got)

	_, ok = ParsePath("/" + addr + "/more")
	assert.False(t, ok)
	_, ok = ParsePath("/echo")
	assert.False(t, ok)
}

// TestStore_PutIdempotent verifies a second put returns the same address
// without growing storage.
func TestStore_PutIdempotent(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(backend)

			first, err := s.Put(ctx, []byte("payload"), "text/plain")
			require.NoError(t, err)
			second, err := s.Put(ctx, []byte("payload"), "text/html")
			require.NoError(t, err)
			assert.Equal(t, first, second)

			obj, err := s.Get(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, []byte("payload"), obj.Data)
			assert.Equal(t, "text/plain", obj.ContentType, "first write's content type is kept")
		})
	}
}

func TestMemory_PutDoesNotGrowOnDuplicate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := NewStore(mem)

	_, err := s.Put(ctx, []byte("same"), "")
	require.NoError(t, err)
	size := mem.StoredBytes()
	_, err = s.Put(ctx, []byte("same"), "")
	require.NoError(t, err)

	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, size, mem.StoredBytes())
}

func TestStore_GetStripsExtensionAndSlash(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory())
	addr, err := s.Put(ctx, []byte("<p>hi</p>"), "text/html")
	require.NoError(t, err)

	obj, err := s.Get(ctx, "/"+addr+".html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(obj.Data))
	assert.Equal(t, addr, obj.Address)
}

func TestStore_GetUnknown(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(backend)
			_, err := s.Get(context.Background(), ComputeAddress([]byte("never stored")))
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = s.Get(context.Background(), "not-an-address")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestStore_Exists(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory())
	addr, err := s.Put(ctx, []byte("a"), "")
	require.NoError(t, err)

	ok, err := s.Exists(ctx, addr+".txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, ComputeAddress([]byte("b")))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStore_ListByPrefixEdgeCases verifies empty and punctuation-only
// prefixes never scan the store.
func TestStore_ListByPrefixEdgeCases(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(backend)
			for i := 0; i < 10; i++ {
				_, err := s.Put(ctx, []byte{byte(i)}, "")
				require.NoError(t, err)
			}

			for _, prefix := range []string{"", "/", ".", "/.html", "-", "__", "/-_"} {
				got, err := s.ListByPrefix(ctx, prefix)
				require.NoError(t, err)
				assert.Empty(t, got, "prefix %q", prefix)
				assert.NotNil(t, got, "prefix %q", prefix)
			}
		})
	}
}

func TestStore_ListByPrefixMatches(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(backend)
			var addrs []string
			for i := 0; i < 50; i++ {
				addr, err := s.Put(ctx, []byte{byte(i), 'x'}, "")
				require.NoError(t, err)
				addrs = append(addrs, addr)
			}

			target := addrs[0]
			for _, a := range addrs {
				if a[0] != '-' && a[0] != '_' {
					target = a
					break
				}
			}
			prefix := target[:1]
			var want []string
			for _, a := range addrs {
				if strings.HasPrefix(a, prefix) {
					want = append(want, a)
				}
			}

			got, err := s.ListByPrefix(ctx, "/"+prefix+".json")
			require.NoError(t, err)
			assert.ElementsMatch(t, want, got)
			assert.IsNonDecreasing(t, got)

			again, err := s.ListByPrefix(ctx, prefix)
			require.NoError(t, err)
			assert.Equal(t, got, again)

			exact, err := s.ListByPrefix(ctx, target)
			require.NoError(t, err)
			assert.Equal(t, []string{target}, exact)
		})
	}
}

func TestStore_CompressesLargeBlobs(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := NewStore(mem, WithCompressThreshold(64))

	data := bytes.Repeat([]byte("waypath "), 1000)
	addr, err := s.Put(ctx, data, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, ComputeAddress(data), addr, "address covers uncompressed bytes")
	assert.Less(t, mem.StoredBytes(), len(data))

	obj, err := s.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
}

func TestStore_CompressionDisabled(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := NewStore(mem, WithCompressThreshold(0))

	data := bytes.Repeat([]byte("a"), 10000)
	_, err := s.Put(ctx, data, "")
	require.NoError(t, err)
	assert.Equal(t, len(data), mem.StoredBytes())
}

func TestBolt_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.db")

	b1, err := OpenBolt(path)
	require.NoError(t, err)
	addr, err := NewStore(b1).Put(ctx, []byte("durable"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, b1.Close())

	b2, err := OpenBolt(path)
	require.NoError(t, err)
	defer b2.Close()
	obj, err := NewStore(b2).Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(obj.Data))
	assert.Equal(t, "text/plain", obj.ContentType)
}

// TestStore_ConcurrentIdenticalPuts verifies racing writers of the same
// bytes converge on one stored blob.
func TestStore_ConcurrentIdenticalPuts(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := NewStore(mem)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, err := s.Put(ctx, []byte("race"), "")
			assert.NoError(t, err)
			results[i] = addr
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, mem.Len())
}

func TestExtensionMapping(t *testing.T) {
	assert.Equal(t, "html", ExtensionFor("text/html; charset=utf-8"))
	assert.Equal(t, "json", ExtensionFor("application/json"))
	assert.Equal(t, "", ExtensionFor("application/x-unknown"))

	ct, ok := ContentTypeFor("JPEG")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", ct)
	_, ok = ContentTypeFor("exe")
	assert.False(t, ok)

	addr := ComputeAddress([]byte("x"))
	assert.Equal(t, "/"+addr+".txt", PathFor(addr, "text/plain"))
	assert.Equal(t, "/"+addr, PathFor(addr, ""))
}
