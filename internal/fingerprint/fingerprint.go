// Package fingerprint computes the digest set frozen onto evidence content.
package fingerprint

import (
	"bytes"
	"crypto/md5"  // #nosec G501 -- MD5 is part of the forensic digest set, not used for security
	"crypto/sha1" // #nosec G505 -- SHA-1 is part of the forensic digest set, not used for security
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"time"

	"forensicvault/pkg/domain"
)

// Digest is the result of one fingerprinting pass.
type Digest struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size_bytes"`
}

// Hasher accumulates all three digests in a single pass. It implements
// io.Writer so it can sit behind an io.TeeReader while content is streamed
// elsewhere.
type Hasher struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	w      io.Writer
	size   int64
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	h := &Hasher{md5: md5.New(), sha1: sha1.New(), sha256: sha256.New()} // #nosec G401
	h.w = io.MultiWriter(h.md5, h.sha1, h.sha256)
	return h
}

func (h *Hasher) Write(p []byte) (int, error) {
	n, err := h.w.Write(p)
	h.size += int64(n)
	return n, err
}

// Sum returns the digests of everything written so far.
func (h *Hasher) Sum() Digest {
	return Digest{
		MD5:    hex.EncodeToString(h.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(h.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(h.sha256.Sum(nil)),
		Size:   h.size,
	}
}

// Compute streams r to completion and returns its digests.
func Compute(r io.Reader) (Digest, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return h.Sum(), nil
}

// ComputeBytes fingerprints an in-memory payload.
func ComputeBytes(b []byte) Digest {
	d, _ := Compute(bytes.NewReader(b))
	return d
}

// Apply freezes d onto content unless it already carries digests. It reports
// whether the content was changed. The digests, size, timestamp and the key
// they were computed from are always written together.
func Apply(content *domain.Content, d Digest, at time.Time) bool {
	if content.Fingerprinted() {
		return false
	}
	content.HashMD5 = d.MD5
	content.HashSHA1 = d.SHA1
	content.HashSHA256 = d.SHA256
	content.SizeBytes = d.Size
	stamp := at
	content.FingerprintedAt = &stamp
	content.FingerprintedKey = content.Key
	return true
}
