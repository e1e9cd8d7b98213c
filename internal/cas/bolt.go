package cas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var contentBucket = []byte("content")

// boltRecord is the value stored under each address key.
type boltRecord struct {
	Data        []byte    `json:"data"`
	Encoding    Encoding  `json:"encoding"`
	Size        int       `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bolt is a Backend persisted in a single bbolt file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt content file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt content store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(contentBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create content bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close closes the underlying file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// PutIfAbsent implements Backend. bbolt serializes writers, so the
// existence check and the put are atomic.
func (s *Bolt) PutIfAbsent(_ context.Context, b Blob) (bool, error) {
	value, err := json.Marshal(boltRecord{
		Data:        b.Data,
		Encoding:    b.Encoding,
		Size:        b.Size,
		ContentType: b.ContentType,
		CreatedAt:   b.CreatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("encode record: %w", err)
	}

	created := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(contentBucket)
		if bucket.Get([]byte(b.Address)) != nil {
			return nil
		}
		created = true
		return bucket.Put([]byte(b.Address), value)
	})
	return created, err
}

// Load implements Backend.
func (s *Bolt) Load(_ context.Context, address string) (Blob, error) {
	var rec boltRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(contentBucket).Get([]byte(address))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return Blob{}, fmt.Errorf("load %s: %w", address, err)
	}
	if !found {
		return Blob{}, fmt.Errorf("%s: %w", address, ErrNotFound)
	}
	return Blob{
		Address:     address,
		Data:        rec.Data,
		Encoding:    rec.Encoding,
		Size:        rec.Size,
		ContentType: rec.ContentType,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

// Has implements Backend.
func (s *Bolt) Has(_ context.Context, address string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(contentBucket).Get([]byte(address)) != nil
		return nil
	})
	return found, err
}

// ScanPrefix implements Backend. Keys iterate in byte order.
func (s *Bolt) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	out := []string{}
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(contentBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	return out, err
}
