package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"forensicvault/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 || s.Bucket() != mockBucket {
		t.Fatalf("unexpected store identity")
	}
	info, err := s.Put(ctx, "evidence/e1/mail.pst", strings.NewReader("mailbox"), core.PutOptions{
		ContentType: "application/vnd.ms-outlook",
		Metadata:    map[string]string{"filename": "mail.pst"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("mailbox")) || info.ContentType != "application/vnd.ms-outlook" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["filename"] != "mail.pst" {
		t.Fatalf("metadata not round-tripped: %+v", info.Metadata)
	}
	if _, err := s.Put(ctx, "evidence/e1/mail.pst", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	_, rc, err := s.Get(ctx, "evidence/e1/mail.pst")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "mailbox" {
		t.Fatalf("unexpected body %q", data)
	}

	if _, err := s.Put(ctx, "evidence/e2/a.bin", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	list, err := s.List(ctx, "evidence/e1/")
	if err != nil || len(list) != 1 || list[0].Key != "evidence/e1/mail.pst" {
		t.Fatalf("List: %+v %v", list, err)
	}

	url, err := s.PresignURL(ctx, "evidence/e1/mail.pst", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("PresignURL: %q %v", url, err)
	}
	if _, err := s.PresignURL(ctx, "evidence/e1/mail.pst", core.SignedURLOptions{Method: "DELETE"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	existed, err := s.Delete(ctx, "evidence/e1/mail.pst")
	if err != nil || !existed {
		t.Fatalf("Delete: %v %v", existed, err)
	}
	existed, err = s.Delete(ctx, "evidence/e1/mail.pst")
	if err != nil || existed {
		t.Fatalf("Delete missing: %v %v", existed, err)
	}
	if _, err := s.Head(ctx, "evidence/e1/mail.pst"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Head, got %v", err)
	}
	if _, _, err := s.Get(ctx, "evidence/e1/mail.pst"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestNewValidatesBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "evidence",
		Endpoint:        "http://minio.local:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	url, err := s.PresignURL(context.Background(), "evidence/e1/a", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasPrefix(url, "http://minio.local:9000/evidence/evidence/e1/a") || !strings.Contains(url, "minio%2F") {
		t.Fatalf("unexpected presigned url %q", url)
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := "5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, ok := decodeAWSChunked([]byte(framed))
	if !ok || string(got) != "hello world" {
		t.Fatalf("decode = %q, %v", got, ok)
	}
	if _, ok := decodeAWSChunked([]byte("zz\r\n")); ok {
		t.Fatalf("expected failure on bad size")
	}
}
