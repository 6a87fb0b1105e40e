package integration

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"forensicvault/internal/blob"
	"forensicvault/internal/core"
	"forensicvault/internal/custody"
	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/internal/infra/persistence/sqlite"
	"forensicvault/pkg/domain"
)

// TestIntegrationSmoke runs a short case, evidence and custody cycle against
// each in-process store, then a put/get/delete cycle against each blob store.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		open func(t *testing.T) domain.PersistentStore
	}{
		{
			name: "memory-store",
			open: func(_ *testing.T) domain.PersistentStore {
				return memory.NewStore(core.NewDefaultRulesEngine())
			},
		},
		{
			name: "sqlite-store",
			open: func(t *testing.T) domain.PersistentStore {
				s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "vault.db"), core.NewDefaultRulesEngine())
				if err != nil {
					t.Fatalf("new sqlite store: %v", err)
				}
				return s
			},
		},
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "filesystem-blob",
			open: func(t *testing.T) blob.Store {
				fs, err := blob.NewFilesystem(t.TempDir())
				if err != nil {
					t.Fatalf("new filesystem blob: %v", err)
				}
				return fs
			},
		},
		{
			name: "mock-s3-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMockS3ForTests() },
		},
	}

	for _, sv := range storeVariants {
		t.Run(sv.name, func(t *testing.T) {
			store := sv.open(t)
			metrics := core.NewExpvarMetricsRecorder("")
			var traceBuffer bytes.Buffer
			tracer := core.NewJSONTracer(&traceBuffer)
			svc := core.NewService(store,
				core.WithMetricsRecorder(metrics),
				core.WithTracer(tracer),
				core.WithBlobStore(blob.NewMemory()),
			)

			c, res, err := svc.CreateCase(ctx, domain.Case{Name: "Warehouse intrusion"})
			if err != nil {
				t.Fatalf("create case: %v", err)
			}
			if res.HasBlocking() {
				t.Fatalf("unexpected blocking violations: %+v", res.Violations)
			}
			ev, _, err := svc.CreateEvidence(ctx, domain.Evidence{
				CaseID:            &c.ID,
				DeviceType:        domain.DeviceMobile,
				CollectedBy:       "Officer Reyes",
				CurrentDepartment: "intake",
			})
			if err != nil {
				t.Fatalf("create evidence: %v", err)
			}
			if want := c.CaseNumber + "-001"; ev.EvidenceNumber != want {
				t.Fatalf("expected evidence number %s, got %s", want, ev.EvidenceNumber)
			}
			if _, _, err := svc.UpdateDepartment(ctx, ev.ID, custody.Request{ToDepartment: "lab", TransferredBy: "Officer Reyes"}); err != nil {
				t.Fatalf("transfer: %v", err)
			}
			if _, _, err := svc.UploadContent(ctx, ev.ID, "phone.bin", "application/octet-stream", bytes.NewReader([]byte("abc"))); err != nil {
				t.Fatalf("upload content: %v", err)
			}

			got, ok := store.GetEvidence(ev.ID)
			if !ok {
				t.Fatalf("expected evidence %s persisted", ev.ID)
			}
			if got.CurrentDepartment != "lab" {
				t.Fatalf("expected department lab, got %q", got.CurrentDepartment)
			}
			if got.Content.HashSHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
				t.Fatalf("unexpected sha256 %q", got.Content.HashSHA256)
			}
			if ledger := store.ListTransfers(ev.ID); len(ledger) != 2 {
				t.Fatalf("expected two ledger rows, got %d", len(ledger))
			}

			snapshot := metrics.Snapshot()
			if snapshot.Results["create_case"]["success"] == 0 {
				t.Fatalf("expected create_case success metric recorded: %+v", snapshot.Results)
			}
			if traceBuffer.Len() == 0 {
				t.Fatalf("expected trace exporter to emit spans")
			}
			var foundSpan bool
			for _, entry := range tracer.Entries() {
				if entry.Operation == "update_department" && entry.Status == "success" {
					foundSpan = true
					break
				}
			}
			if !foundSpan {
				t.Fatalf("expected trace entry for update_department, entries=%+v", tracer.Entries())
			}
		})
	}

	for _, bv := range blobVariants {
		t.Run(bv.name, func(t *testing.T) {
			bs := bv.open(t)
			key := "evidence/smoke/image.E01"
			payload := []byte("hello")
			info, err := bs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/octet-stream"})
			if err != nil {
				t.Fatalf("blob put: %v", err)
			}
			if info.Key != key {
				t.Fatalf("unexpected blob key info: %+v", info)
			}
			// The mock S3 transport may report an aws-chunked size.
			if info.Size <= 0 {
				t.Fatalf("expected positive blob size, got %d (info=%+v)", info.Size, info)
			}
			_, rc, err := bs.Get(ctx, key)
			if err != nil {
				t.Fatalf("blob get: %v", err)
			}
			got, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read payload: %v", err)
			}
			if string(got) != string(payload) {
				t.Fatalf("payload mismatch got=%q want=%q", string(got), string(payload))
			}
			if ok, err := bs.Delete(ctx, key); err != nil || !ok {
				t.Fatalf("blob delete: %v ok=%v", err, ok)
			}
		})
	}
}
