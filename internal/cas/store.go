package cas

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/waypath/internal/model"
)

// ErrNotFound is returned when an address has no stored blob.
var ErrNotFound = errors.New("content not found")

// Blob is the stored form of a content object.
type Blob struct {
	Address     string
	Data        []byte
	Encoding    Encoding
	Size        int
	ContentType string
	CreatedAt   time.Time
}

// Backend persists blobs. Implementations must make PutIfAbsent atomic
// per address; concurrent writers of the same address are expected.
type Backend interface {
	// PutIfAbsent stores b unless its address already exists and reports
	// whether a new row was written.
	PutIfAbsent(ctx context.Context, b Blob) (bool, error)

	// Load returns the blob or an error wrapping ErrNotFound.
	Load(ctx context.Context, address string) (Blob, error)

	// Has reports whether address is stored.
	Has(ctx context.Context, address string) (bool, error)

	// ScanPrefix returns stored addresses starting with prefix, sorted
	// ascending. prefix is never empty.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithCompressThreshold sets the minimum blob size stored zstd-compressed.
// Zero disables compression.
func WithCompressThreshold(n int) Option {
	return func(s *Store) {
		s.compressMin = n
	}
}

// WithNow overrides the clock used for CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the content-addressed front-end over a Backend.
type Store struct {
	backend     Backend
	compressMin int
	now         func() time.Time
}

// NewStore wraps backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		compressMin: DefaultCompressThreshold,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores data and returns its address. Storing identical bytes again
// is a no-op that returns the same address; the content type of the first
// write is kept.
func (s *Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	addr := ComputeAddress(data)

	exists, err := s.backend.Has(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("check content %s: %w", addr, err)
	}
	if exists {
		return addr, nil
	}

	stored, enc := encode(data, s.compressMin)
	_, err = s.backend.PutIfAbsent(ctx, Blob{
		Address:     addr,
		Data:        stored,
		Encoding:    enc,
		Size:        len(data),
		ContentType: contentType,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("store content %s: %w", addr, err)
	}
	return addr, nil
}

// Get returns the content object for address. A ".ext" suffix and a
// leading slash are ignored.
func (s *Store) Get(ctx context.Context, address string) (model.ContentObject, error) {
	addr, _ := SplitExtension(address)
	if !IsAddress(addr) {
		return model.ContentObject{}, fmt.Errorf("%q: %w", address, ErrNotFound)
	}

	b, err := s.backend.Load(ctx, addr)
	if err != nil {
		return model.ContentObject{}, err
	}
	data, err := decode(b.Data, b.Encoding, b.Size)
	if err != nil {
		return model.ContentObject{}, fmt.Errorf("decode content %s: %w", addr, err)
	}
	return model.ContentObject{
		Address:     addr,
		Data:        data,
		ContentType: b.ContentType,
		CreatedAt:   b.CreatedAt,
	}, nil
}

// Exists reports whether address is stored.
func (s *Store) Exists(ctx context.Context, address string) (bool, error) {
	addr, _ := SplitExtension(address)
	if !IsAddress(addr) {
		return false, nil
	}
	return s.backend.Has(ctx, addr)
}

// ListByPrefix returns the addresses that start with prefix, sorted.
// Empty, "/" and punctuation-only prefixes return an empty slice.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	p, ok := NormalizePrefix(prefix)
	if !ok {
		return []string{}, nil
	}
	addrs, err := s.backend.ScanPrefix(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", p, err)
	}
	if addrs == nil {
		return []string{}, nil
	}
	slices.Sort(addrs)
	return addrs, nil
}
