// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments. Durable backends embed it
// and run every transaction through RunDurable, which reloads the committed
// state under the backend's writer lock and publishes the result only after
// it is written.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"forensicvault/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Case aliases domain.Case for in-memory persistence operations.
	Case = domain.Case
	// Evidence aliases domain.Evidence.
	Evidence = domain.Evidence
	// CustodyTransfer aliases domain.CustodyTransfer.
	CustodyTransfer = domain.CustodyTransfer
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	cases            map[string]Case
	evidence         map[string]Evidence
	transfers        map[string][]CustodyTransfer
	caseByNumber     map[string]string
	evidenceByNumber map[string]string
	sequence         int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Cases     map[string]Case              `json:"cases"`
	Evidence  map[string]Evidence          `json:"evidence"`
	Transfers map[string][]CustodyTransfer `json:"custody_transfers"`
}

func newMemoryState() memoryState {
	return memoryState{
		cases:            make(map[string]Case),
		evidence:         make(map[string]Evidence),
		transfers:        make(map[string][]CustodyTransfer),
		caseByNumber:     make(map[string]string),
		evidenceByNumber: make(map[string]string),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Cases:     make(map[string]Case, len(state.cases)),
		Evidence:  make(map[string]Evidence, len(state.evidence)),
		Transfers: make(map[string][]CustodyTransfer, len(state.transfers)),
	}
	for k, v := range state.cases {
		s.Cases[k] = cloneCase(v)
	}
	for k, v := range state.evidence {
		s.Evidence[k] = cloneEvidence(v)
	}
	for k, v := range state.transfers {
		s.Transfers[k] = append([]CustodyTransfer(nil), v...)
	}
	return s
}

// memoryStateFromSnapshot rebuilds indexes and the ledger sequence. Ledger
// rows are reordered by sequence and rows of unknown evidence are dropped.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Cases {
		c := cloneCase(v)
		if c.ID == "" {
			c.ID = k
		}
		state.cases[c.ID] = c
		if c.CaseNumber != "" {
			state.caseByNumber[c.CaseNumber] = c.ID
		}
	}
	for k, v := range s.Evidence {
		e := cloneEvidence(v)
		if e.ID == "" {
			e.ID = k
		}
		state.evidence[e.ID] = e
		if e.EvidenceNumber != "" {
			state.evidenceByNumber[e.EvidenceNumber] = e.ID
		}
	}
	for evidenceID, rows := range s.Transfers {
		if _, ok := state.evidence[evidenceID]; !ok {
			continue
		}
		ordered := append([]CustodyTransfer(nil), rows...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
		for _, row := range ordered {
			if row.Sequence > state.sequence {
				state.sequence = row.Sequence
			}
		}
		state.transfers[evidenceID] = ordered
	}
	return state
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.cases {
		cloned.cases[k] = cloneCase(v)
	}
	for k, v := range s.evidence {
		cloned.evidence[k] = cloneEvidence(v)
	}
	for k, v := range s.transfers {
		cloned.transfers[k] = append([]CustodyTransfer(nil), v...)
	}
	for k, v := range s.caseByNumber {
		cloned.caseByNumber[k] = v
	}
	for k, v := range s.evidenceByNumber {
		cloned.evidenceByNumber[k] = v
	}
	cloned.sequence = s.sequence
	return cloned
}

func cloneCase(c Case) Case {
	cp := c
	cp.Tags = append([]string(nil), c.Tags...)
	cp.IncidentAt = cloneTime(c.IncidentAt)
	cp.ClosedAt = cloneTime(c.ClosedAt)
	return cp
}

func cloneEvidence(e Evidence) Evidence {
	cp := e
	if e.CaseID != nil {
		id := *e.CaseID
		cp.CaseID = &id
	}
	cp.IMEINumbers = append([]string(nil), e.IMEINumbers...)
	cp.Tags = append([]string(nil), e.Tags...)
	cp.ReceivedAt = cloneTime(e.ReceivedAt)
	cp.Content.FingerprintedAt = cloneTime(e.Content.FingerprintedAt)
	if e.DeviceData != nil {
		cp.DeviceData = cloneValue(e.DeviceData).(map[string]any)
	}
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case []map[string]string:
		out := make([]map[string]string, len(val))
		for i, item := range val {
			out[i] = cloneValue(item).(map[string]string)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp record timestamps.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider. A nil fn restores wall-clock UTC.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// Transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// TransactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListCases returns all cases ordered by case number.
func (v transactionView) ListCases() []Case {
	out := make([]Case, 0, len(v.state.cases))
	for _, c := range v.state.cases {
		out = append(out, cloneCase(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseNumber == out[j].CaseNumber {
			return out[i].ID < out[j].ID
		}
		return out[i].CaseNumber < out[j].CaseNumber
	})
	return out
}

// ListEvidence returns all evidence ordered by evidence number.
func (v transactionView) ListEvidence() []Evidence {
	out := make([]Evidence, 0, len(v.state.evidence))
	for _, e := range v.state.evidence {
		out = append(out, cloneEvidence(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EvidenceNumber == out[j].EvidenceNumber {
			return out[i].ID < out[j].ID
		}
		return out[i].EvidenceNumber < out[j].EvidenceNumber
	})
	return out
}

// FindCase retrieves a case by ID.
func (v transactionView) FindCase(id string) (Case, bool) {
	c, ok := v.state.cases[id]
	if !ok {
		return Case{}, false
	}
	return cloneCase(c), true
}

// FindEvidence retrieves an evidence item by ID.
func (v transactionView) FindEvidence(id string) (Evidence, bool) {
	e, ok := v.state.evidence[id]
	if !ok {
		return Evidence{}, false
	}
	return cloneEvidence(e), true
}

// FindCaseByNumber retrieves a case by its case number.
func (v transactionView) FindCaseByNumber(number string) (Case, bool) {
	id, ok := v.state.caseByNumber[number]
	if !ok {
		return Case{}, false
	}
	return v.FindCase(id)
}

// FindEvidenceByNumber retrieves an evidence item by its evidence number.
func (v transactionView) FindEvidenceByNumber(number string) (Evidence, bool) {
	id, ok := v.state.evidenceByNumber[number]
	if !ok {
		return Evidence{}, false
	}
	return v.FindEvidence(id)
}

// CaseNumbers lists case numbers with the given prefix.
func (v transactionView) CaseNumbers(prefix string) []string {
	return numbersWithPrefix(v.state.caseByNumber, prefix)
}

// EvidenceNumbers lists evidence numbers with the given prefix.
func (v transactionView) EvidenceNumbers(prefix string) []string {
	return numbersWithPrefix(v.state.evidenceByNumber, prefix)
}

// ListTransfers returns the ledger of an evidence item in insertion order.
func (v transactionView) ListTransfers(evidenceID string) []CustodyTransfer {
	return append([]CustodyTransfer(nil), v.state.transfers[evidenceID]...)
}

func numbersWithPrefix(index map[string]string, prefix string) []string {
	var out []string
	for number := range index {
		if strings.HasPrefix(number, prefix) {
			out = append(out, number)
		}
	}
	sort.Strings(out)
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunDurable(ctx, fn, nil)
}

// Journal is one write session on a durable backend. It holds the backend's
// writer lock from the moment it is opened until Commit or Rollback.
type Journal interface {
	// Load reads the committed state under the writer lock.
	Load(ctx context.Context) (Snapshot, error)
	// Commit stores snapshot and releases the lock.
	Commit(ctx context.Context, snapshot Snapshot) error
	// Rollback releases the lock without writing.
	Rollback() error
}

// RunDurable is RunInTransaction against a durable backend. begin opens a
// journal; the store replaces its state with the journal's snapshot before
// fn runs, so numbers are allocated from what other writers committed. The
// new state becomes visible only once the journal commits. A nil begin runs
// a plain in-memory transaction.
func (s *Store) RunDurable(ctx context.Context, fn func(tx Transaction) error, begin func(context.Context) (Journal, error)) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if begin == nil {
		return s.apply(ctx, fn, nil)
	}
	journal, err := begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open journal: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = journal.Rollback()
		}
	}()
	fresh, err := journal.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load snapshot: %w", err)
	}
	s.state = memoryStateFromSnapshot(fresh)
	return s.apply(ctx, fn, func(next memoryState) error {
		if err := journal.Commit(ctx, snapshotFromMemoryState(next)); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
		committed = true
		return nil
	})
}

// apply runs fn on a clone of the state, evaluates the rules and publishes
// the clone once commit accepts it. The caller holds s.mu.
func (s *Store) apply(ctx context.Context, fn func(tx Transaction) error, commit func(memoryState) error) (Result, error) {
	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if commit != nil {
		if err := commit(tx.state); err != nil {
			return result, err
		}
	}
	s.state = tx.state
	return result, nil
}

// Refresh replaces the state with the snapshot returned by load. Durable
// stores call it before reads so they observe other writers' commits.
func (s *Store) Refresh(ctx context.Context, load func(context.Context) (Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.state = memoryStateFromSnapshot(fresh)
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetCase returns a case by ID.
func (s *Store) GetCase(id string) (Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindCase(id)
}

// ListCases returns all cases.
func (s *Store) ListCases() []Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListCases()
}

// GetEvidence returns an evidence item by ID.
func (s *Store) GetEvidence(id string) (Evidence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindEvidence(id)
}

// ListEvidence returns all evidence items.
func (s *Store) ListEvidence() []Evidence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListEvidence()
}

// ListTransfers returns the custody ledger of an evidence item in insertion order.
func (s *Store) ListTransfers(evidenceID string) []CustodyTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListTransfers(evidenceID)
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindCase exposes case lookup within the transaction scope.
func (tx *transaction) FindCase(id string) (Case, bool) {
	return newTransactionView(&tx.state).FindCase(id)
}

// FindEvidence exposes evidence lookup within the transaction scope.
func (tx *transaction) FindEvidence(id string) (Evidence, bool) {
	return newTransactionView(&tx.state).FindEvidence(id)
}

// CreateCase stores a new case. The case number must not already be taken.
func (tx *transaction) CreateCase(c Case) (Case, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.cases[c.ID]; exists {
		return Case{}, fmt.Errorf("case %q already exists", c.ID)
	}
	if err := tx.claimCaseNumber(c.CaseNumber, c.ID); err != nil {
		return Case{}, err
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cases[c.ID] = cloneCase(c)
	tx.recordChange(Change{Entity: domain.EntityCase, Action: domain.ActionCreate, After: cloneCase(c)})
	return cloneCase(c), nil
}

// UpdateCase mutates a case using the provided mutator function.
func (tx *transaction) UpdateCase(id string, mutator func(*Case) error) (Case, error) {
	current, ok := tx.state.cases[id]
	if !ok {
		return Case{}, domain.ErrNotFound{Entity: domain.EntityCase, ID: id}
	}
	before := cloneCase(current)
	if err := mutator(&current); err != nil {
		return Case{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if current.CaseNumber != before.CaseNumber {
		if err := tx.claimCaseNumber(current.CaseNumber, id); err != nil {
			return Case{}, err
		}
		delete(tx.state.caseByNumber, before.CaseNumber)
	}
	tx.state.cases[id] = cloneCase(current)
	tx.recordChange(Change{Entity: domain.EntityCase, Action: domain.ActionUpdate, Before: before, After: cloneCase(current)})
	return cloneCase(current), nil
}

// DeleteCase removes a case and orphans the evidence bound to it.
func (tx *transaction) DeleteCase(id string) error {
	current, ok := tx.state.cases[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityCase, ID: id}
	}
	for evidenceID, e := range tx.state.evidence {
		if e.CaseID == nil || *e.CaseID != id {
			continue
		}
		before := cloneEvidence(e)
		e.CaseID = nil
		e.UpdatedAt = tx.now
		tx.state.evidence[evidenceID] = e
		tx.recordChange(Change{Entity: domain.EntityEvidence, Action: domain.ActionUpdate, Before: before, After: cloneEvidence(e)})
	}
	delete(tx.state.cases, id)
	delete(tx.state.caseByNumber, current.CaseNumber)
	tx.recordChange(Change{Entity: domain.EntityCase, Action: domain.ActionDelete, Before: cloneCase(current)})
	return nil
}

// CreateEvidence stores a new evidence item. The evidence number must not
// already be taken and a referenced case must exist.
func (tx *transaction) CreateEvidence(e Evidence) (Evidence, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.evidence[e.ID]; exists {
		return Evidence{}, fmt.Errorf("evidence %q already exists", e.ID)
	}
	if err := tx.requireCase(e.CaseID); err != nil {
		return Evidence{}, err
	}
	if err := tx.claimEvidenceNumber(e.EvidenceNumber, e.ID); err != nil {
		return Evidence{}, err
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.evidence[e.ID] = cloneEvidence(e)
	tx.recordChange(Change{Entity: domain.EntityEvidence, Action: domain.ActionCreate, After: cloneEvidence(e)})
	return cloneEvidence(e), nil
}

// UpdateEvidence mutates an evidence item using the provided mutator function.
func (tx *transaction) UpdateEvidence(id string, mutator func(*Evidence) error) (Evidence, error) {
	current, ok := tx.state.evidence[id]
	if !ok {
		return Evidence{}, domain.ErrNotFound{Entity: domain.EntityEvidence, ID: id}
	}
	before := cloneEvidence(current)
	if err := mutator(&current); err != nil {
		return Evidence{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.requireCase(current.CaseID); err != nil {
		return Evidence{}, err
	}
	if current.EvidenceNumber != before.EvidenceNumber {
		if err := tx.claimEvidenceNumber(current.EvidenceNumber, id); err != nil {
			return Evidence{}, err
		}
		delete(tx.state.evidenceByNumber, before.EvidenceNumber)
	}
	tx.state.evidence[id] = cloneEvidence(current)
	tx.recordChange(Change{Entity: domain.EntityEvidence, Action: domain.ActionUpdate, Before: before, After: cloneEvidence(current)})
	return cloneEvidence(current), nil
}

// DeleteEvidence removes an evidence item and its custody ledger.
func (tx *transaction) DeleteEvidence(id string) error {
	current, ok := tx.state.evidence[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityEvidence, ID: id}
	}
	for _, row := range tx.state.transfers[id] {
		tx.recordChange(Change{Entity: domain.EntityCustodyTransfer, Action: domain.ActionDelete, Before: row})
	}
	delete(tx.state.transfers, id)
	delete(tx.state.evidence, id)
	delete(tx.state.evidenceByNumber, current.EvidenceNumber)
	tx.recordChange(Change{Entity: domain.EntityEvidence, Action: domain.ActionDelete, Before: cloneEvidence(current)})
	return nil
}

// AppendTransfer adds a custody ledger row for an existing evidence item.
func (tx *transaction) AppendTransfer(t CustodyTransfer) (CustodyTransfer, error) {
	if _, ok := tx.state.evidence[t.EvidenceID]; !ok {
		return CustodyTransfer{}, domain.ErrNotFound{Entity: domain.EntityEvidence, ID: t.EvidenceID}
	}
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if t.TransferredAt.IsZero() {
		t.TransferredAt = tx.now
	}
	tx.state.sequence++
	t.Sequence = tx.state.sequence
	tx.state.transfers[t.EvidenceID] = append(tx.state.transfers[t.EvidenceID], t)
	tx.recordChange(Change{Entity: domain.EntityCustodyTransfer, Action: domain.ActionCreate, After: t})
	return t, nil
}

func (tx *transaction) claimCaseNumber(number, id string) error {
	if number == "" {
		return nil
	}
	if owner, taken := tx.state.caseByNumber[number]; taken && owner != id {
		return domain.IdentifierConflictError{Entity: domain.EntityCase, Identifier: number}
	}
	tx.state.caseByNumber[number] = id
	return nil
}

func (tx *transaction) claimEvidenceNumber(number, id string) error {
	if number == "" {
		return nil
	}
	if owner, taken := tx.state.evidenceByNumber[number]; taken && owner != id {
		return domain.IdentifierConflictError{Entity: domain.EntityEvidence, Identifier: number}
	}
	tx.state.evidenceByNumber[number] = id
	return nil
}

func (tx *transaction) requireCase(caseID *string) error {
	if caseID == nil || *caseID == "" {
		return nil
	}
	if _, ok := tx.state.cases[*caseID]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityCase, ID: *caseID}
	}
	return nil
}
