package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/waypath/internal/cas"
)

// PutIfAbsent implements cas.Backend.
func (s *Store) PutIfAbsent(ctx context.Context, b cas.Blob) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO content (address, data, encoding, size, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, b.Address, b.Data, string(b.Encoding), b.Size, b.ContentType, b.CreatedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert content %s: %w", b.Address, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert content %s: %w", b.Address, err)
	}
	return n > 0, nil
}

// Load implements cas.Backend.
func (s *Store) Load(ctx context.Context, address string) (cas.Blob, error) {
	var (
		b         cas.Blob
		encoding  string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data, encoding, size, content_type, created_at
		FROM content WHERE address = ?
	`, address).Scan(&b.Data, &encoding, &b.Size, &b.ContentType, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cas.Blob{}, fmt.Errorf("%s: %w", address, cas.ErrNotFound)
	}
	if err != nil {
		return cas.Blob{}, fmt.Errorf("load content %s: %w", address, err)
	}
	b.Address = address
	b.Encoding = cas.Encoding(encoding)
	b.CreatedAt = time.Unix(0, createdAt).UTC()
	return b, nil
}

// Has implements cas.Backend.
func (s *Store) Has(ctx context.Context, address string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM content WHERE address = ?`, address).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check content %s: %w", address, err)
	}
	return true, nil
}

// ScanPrefix implements cas.Backend. The address alphabet contains no GLOB
// metacharacters, so the prefix is used verbatim; GLOB is case-sensitive.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address FROM content
		WHERE address GLOB ?
		ORDER BY address COLLATE BINARY ASC
	`, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	addrs := []string{}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, rows.Err()
}

// ContentCount returns the number of stored blobs.
func (s *Store) ContentCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return n, nil
}
