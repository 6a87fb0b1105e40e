package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"forensicvault/internal/blob"
	"forensicvault/internal/fingerprint"
	"forensicvault/pkg/domain"

	"github.com/google/uuid"
)

// ErrNoBlobStore is returned by content operations that need a blob store
// when none is configured.
var ErrNoBlobStore = errors.New("no blob store configured")

// ContentOptions describes the attachment a byte stream belongs to. Empty
// fields leave the current reference unchanged.
type ContentOptions struct {
	Key         string
	Name        string
	ContentType string
}

// AttachContent fingerprints data and records it as the evidence content.
// Evidence that already carries digests is never re-hashed.
func (s *Service) AttachContent(ctx context.Context, evidenceID string, data []byte, opts ContentOptions) (domain.Evidence, domain.Result, error) {
	return s.AttachContentStream(ctx, evidenceID, bytes.NewReader(data), opts)
}

// AttachContentStream is AttachContent over a reader. The reader is left
// unread when the evidence is already fingerprinted.
func (s *Service) AttachContentStream(ctx context.Context, evidenceID string, r io.Reader, opts ContentOptions) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	res, err := s.run(ctx, opAttachContent, func(ctx context.Context) (string, domain.Result, error) {
		current, err := s.GetEvidence(ctx, evidenceID)
		if err != nil {
			return evidenceID, domain.Result{}, err
		}
		var digest *fingerprint.Digest
		if current.Content.Fingerprinted() {
			s.logger.Debug("content already fingerprinted", "evidence_id", evidenceID)
		} else {
			d, err := fingerprint.Compute(r)
			if err != nil {
				return evidenceID, domain.Result{}, fmt.Errorf("fingerprint content: %w", err)
			}
			digest = &d
		}
		var res domain.Result
		updated, res, err = s.commitContent(ctx, evidenceID, opts, digest)
		return evidenceID, res, err
	})
	return updated, res, err
}

// UploadContent stores r in the blob store under a fresh key and references
// it from the evidence. The first upload is fingerprinted while it streams;
// later uploads only replace the reference.
func (s *Service) UploadContent(ctx context.Context, evidenceID, name, contentType string, r io.Reader) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	res, err := s.run(ctx, opUploadContent, func(ctx context.Context) (string, domain.Result, error) {
		if s.blobs == nil {
			return evidenceID, domain.Result{}, ErrNoBlobStore
		}
		current, err := s.GetEvidence(ctx, evidenceID)
		if err != nil {
			return evidenceID, domain.Result{}, err
		}
		key := contentKey(evidenceID, name)
		var hasher *fingerprint.Hasher
		if !current.Content.Fingerprinted() {
			hasher = fingerprint.NewHasher()
			r = io.TeeReader(r, hasher)
		}
		info, err := s.blobs.Put(ctx, key, r, blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"evidence_id": evidenceID, "filename": name},
		})
		if err != nil {
			return evidenceID, domain.Result{}, fmt.Errorf("store content: %w", err)
		}
		var digest *fingerprint.Digest
		if hasher != nil {
			d := hasher.Sum()
			digest = &d
		}
		var res domain.Result
		updated, res, err = s.commitContent(ctx, evidenceID, ContentOptions{Key: info.Key, Name: name, ContentType: info.ContentType}, digest)
		if err != nil {
			if _, delErr := s.blobs.Delete(ctx, info.Key); delErr != nil {
				s.logger.Warn("orphaned content left in blob store", "key", info.Key, "error", delErr)
			}
		}
		return evidenceID, res, err
	})
	return updated, res, err
}

// AttachBlob references content that already sits in the blob store,
// fingerprinting it when the evidence has no digests yet.
func (s *Service) AttachBlob(ctx context.Context, evidenceID, key string) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	res, err := s.run(ctx, opAttachBlob, func(ctx context.Context) (string, domain.Result, error) {
		if s.blobs == nil {
			return evidenceID, domain.Result{}, ErrNoBlobStore
		}
		current, err := s.GetEvidence(ctx, evidenceID)
		if err != nil {
			return evidenceID, domain.Result{}, err
		}
		info, err := s.blobs.Head(ctx, key)
		if err != nil {
			return evidenceID, domain.Result{}, fmt.Errorf("lookup content %s: %w", key, err)
		}
		opts := ContentOptions{Key: info.Key, Name: info.Metadata["filename"], ContentType: info.ContentType}
		if opts.Name == "" {
			opts.Name = path.Base(info.Key)
		}
		var digest *fingerprint.Digest
		if !current.Content.Fingerprinted() {
			_, rc, err := s.blobs.Get(ctx, key)
			if err != nil {
				return evidenceID, domain.Result{}, fmt.Errorf("read content %s: %w", key, err)
			}
			d, err := fingerprint.Compute(rc)
			_ = rc.Close()
			if err != nil {
				return evidenceID, domain.Result{}, fmt.Errorf("fingerprint content: %w", err)
			}
			digest = &d
		}
		var res domain.Result
		updated, res, err = s.commitContent(ctx, evidenceID, opts, digest)
		return evidenceID, res, err
	})
	return updated, res, err
}

// commitContent writes the content reference and, when digest is set,
// freezes it onto the evidence. Apply is a no-op if another writer
// fingerprinted the item in the meantime.
func (s *Service) commitContent(ctx context.Context, evidenceID string, opts ContentOptions, digest *fingerprint.Digest) (domain.Evidence, domain.Result, error) {
	var updated domain.Evidence
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateEvidence(evidenceID, func(e *domain.Evidence) error {
			if opts.Key != "" {
				e.Content.Key = opts.Key
			}
			if opts.Name != "" {
				e.Content.Name = opts.Name
			}
			if opts.ContentType != "" {
				e.Content.ContentType = opts.ContentType
			}
			if digest != nil && !fingerprint.Apply(&e.Content, *digest, s.now()) {
				s.logger.Debug("fingerprint already recorded by a concurrent writer", "evidence_id", evidenceID)
			}
			return nil
		})
		return err
	})
	return updated, res, err
}

func contentKey(evidenceID, name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "content"
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	for strings.Contains(base, "..") {
		base = strings.ReplaceAll(base, "..", ".")
	}
	return fmt.Sprintf("evidence/%s/%s-%s", evidenceID, uuid.NewString(), base)
}
