package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"forensicvault/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  config.Blob
		want Driver
	}{
		{config.Blob{FSRoot: filepath.Join(t.TempDir(), "fs")}, DriverFilesystem},
		{config.Blob{Driver: "fs", FSRoot: filepath.Join(t.TempDir(), "fs2")}, DriverFilesystem},
		{config.Blob{Driver: "memory"}, DriverMemory},
		{config.Blob{Driver: "s3", S3: config.S3{Bucket: "evidence", AccessKeyID: "k", SecretAccessKey: "s"}}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("Open(%+v): %v", tc.cfg, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("Open(%+v) driver = %s, want %s", tc.cfg, store.Driver(), tc.want)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(context.Background(), config.Blob{Driver: "tape"}); err == nil || !strings.Contains(err.Error(), "unknown blob driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
	if _, err := Open(context.Background(), config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestStoresShareErrorContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		if _, err := store.Put(ctx, "evidence/e1/a.bin", strings.NewReader("a"), PutOptions{}); err != nil {
			t.Fatalf("%s Put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "evidence/e1/a.bin", strings.NewReader("b"), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", store.Driver(), err)
		}
		if _, err := store.Head(ctx, "evidence/e1/missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", store.Driver(), err)
		}
	}
}
