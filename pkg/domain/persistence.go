package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Case and evidence numbers are unique
// per entity type; writes that would duplicate one fail with
// IdentifierConflictError.
type Transaction interface {
	Snapshot() TransactionView
	CreateCase(Case) (Case, error)
	UpdateCase(id string, mutator func(*Case) error) (Case, error)
	// DeleteCase removes the case and orphans the evidence that referenced it.
	DeleteCase(id string) error
	CreateEvidence(Evidence) (Evidence, error)
	UpdateEvidence(id string, mutator func(*Evidence) error) (Evidence, error)
	// DeleteEvidence removes the evidence together with its custody ledger.
	DeleteEvidence(id string) error
	// AppendTransfer adds a ledger row. Rows are never updated; the store
	// assigns the ID when empty and always assigns the sequence.
	AppendTransfer(CustodyTransfer) (CustodyTransfer, error)
	FindCase(id string) (Case, bool)
	FindEvidence(id string) (Evidence, bool)
}

// TransactionView provides read-only access to snapshot data for rules and queries.
type TransactionView interface {
	ListCases() []Case
	ListEvidence() []Evidence
	FindCase(id string) (Case, bool)
	FindEvidence(id string) (Evidence, bool)
	FindCaseByNumber(number string) (Case, bool)
	FindEvidenceByNumber(number string) (Evidence, bool)
	// CaseNumbers lists stored case numbers starting with prefix.
	CaseNumbers(prefix string) []string
	// EvidenceNumbers lists stored evidence numbers starting with prefix.
	EvidenceNumbers(prefix string) []string
	// ListTransfers returns the ledger of one evidence item in insertion order.
	ListTransfers(evidenceID string) []CustodyTransfer
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetCase(id string) (Case, bool)
	ListCases() []Case
	GetEvidence(id string) (Evidence, bool)
	ListEvidence() []Evidence
	ListTransfers(evidenceID string) []CustodyTransfer
}
