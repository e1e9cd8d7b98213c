package cas

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Domain separates content hashes from any other hash in the system.
const Domain = "waypath/content/v1"

// AddressLength is the length of every address string.
const AddressLength = 43

// ComputeAddress returns the content address of data.
func ComputeAddress(data []byte) string {
	h := sha256.New()
	h.Write([]byte(Domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// IsAddress reports whether s is a well-formed address (no extension).
func IsAddress(s string) bool {
	if len(s) != AddressLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAddressChar(s[i]) {
			return false
		}
	}
	return true
}

// SplitExtension strips a cosmetic ".ext" suffix from a path segment.
// The leading slash, if any, is removed too.
func SplitExtension(segment string) (address, ext string) {
	segment = strings.TrimPrefix(segment, "/")
	if i := strings.IndexByte(segment, '.'); i >= 0 {
		return segment[:i], segment[i+1:]
	}
	return segment, ""
}

// ParsePath returns the address named by a path such as "/{address}.html".
func ParsePath(path string) (string, bool) {
	addr, _ := SplitExtension(path)
	if strings.Contains(addr, "/") || !IsAddress(addr) {
		return "", false
	}
	return addr, true
}

// NormalizePrefix turns a user-supplied prefix into the string that is
// matched against addresses. It strips the leading slash and truncates at
// the first ".". The second result is false when nothing meaningful is left
// (empty, "/" or punctuation only), in which case callers must return no
// results rather than scanning everything.
func NormalizePrefix(prefix string) (string, bool) {
	p, _ := SplitExtension(prefix)
	for i := 0; i < len(p); i++ {
		if !isAddressChar(p[i]) {
			return "", false
		}
	}
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c != '-' && c != '_' {
			return p, true
		}
	}
	return "", false
}

func isAddressChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}
