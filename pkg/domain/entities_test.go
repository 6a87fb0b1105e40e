package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestContentFingerprintState(t *testing.T) {
	var c Content
	if c.Fingerprinted() || c.Stale() {
		t.Fatalf("empty content must be neither fingerprinted nor stale")
	}
	c = Content{Key: "evidence/a", HashMD5: "abc", FingerprintedKey: "evidence/a"}
	if !c.Fingerprinted() || c.Stale() {
		t.Fatalf("expected fresh fingerprint, got %+v", c)
	}
	c.Key = "evidence/b"
	if !c.Stale() {
		t.Fatalf("expected replaced content to be stale")
	}
}

func TestEvidenceUnassigned(t *testing.T) {
	if !(Evidence{}).Unassigned() {
		t.Fatalf("nil case id should be unassigned")
	}
	empty := ""
	if !(Evidence{CaseID: &empty}).Unassigned() {
		t.Fatalf("empty case id should be unassigned")
	}
	id := "c1"
	if (Evidence{CaseID: &id}).Unassigned() {
		t.Fatalf("bound evidence reported unassigned")
	}
}

func TestDeviceTypeLabels(t *testing.T) {
	for _, dt := range DeviceTypes() {
		if !dt.Known() || dt.Label() == "" {
			t.Fatalf("device type %q missing label", dt)
		}
	}
	if DeviceType("toaster").Known() {
		t.Fatalf("unexpected known device type")
	}
	if DeviceType("toaster").Label() != "toaster" {
		t.Fatalf("unknown device type should echo its value")
	}
}

func TestDepartmentLabels(t *testing.T) {
	cases := map[string]string{
		"":           "Unassigned",
		"zwacri":     "ZwaCri",
		"kustwacht":  "Kustwacht",
		"field-lab7": "field-lab7",
	}
	for code, want := range cases {
		if got := DepartmentLabel(code); got != want {
			t.Fatalf("DepartmentLabel(%q) = %q, want %q", code, got, want)
		}
	}
	if KnownDepartment("field-lab7") {
		t.Fatalf("free-form department must not be known")
	}
}

func TestErrorMessagesAndMatching(t *testing.T) {
	dup := fmt.Errorf("create: %w", DuplicateIdentifierError{Entity: EntityCase, Identifier: "25-0001"})
	var target DuplicateIdentifierError
	if !errors.As(dup, &target) || target.Identifier != "25-0001" {
		t.Fatalf("expected duplicate identifier error, got %v", dup)
	}
	invalid := InvalidDeviceAttributesError{DeviceType: DeviceMobile, Keys: []string{"cpu"}}
	if !strings.Contains(invalid.Error(), "cpu") {
		t.Fatalf("expected offending key in message: %s", invalid.Error())
	}
	unknown := InvalidDeviceAttributesError{DeviceType: "toaster"}
	if !strings.Contains(unknown.Error(), "unknown device type") {
		t.Fatalf("unexpected message %s", unknown.Error())
	}
	if (ErrNotFound{Entity: EntityEvidence, ID: "x"}).Error() != "evidence x not found" {
		t.Fatalf("unexpected not found message")
	}
	if !strings.Contains(IdentifierConflictError{Entity: EntityEvidence, Identifier: "n"}.Error(), "uniqueness") {
		t.Fatalf("unexpected conflict message")
	}
}
