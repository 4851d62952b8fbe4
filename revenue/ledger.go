/*
ledger.go - Recognition ledger

PURPOSE:
  Enforces the recognition rules on top of the append-only journal
  (generic.Store). Schedule entries live in the ScheduleRepository and are
  always stored as Scheduled; their Recognized state is derived from the
  journal, so there is exactly one place that says what has been earned.

JOURNAL MAPPING:
  EntityID   = contract
  AccountID  = obligation
  recognition: ID = schedule entry ID, key "recognition:<entry>"
  adjustment:  ID = new uuid,          key "adjustment:<id>", ref = original
  reversal:    ID = new uuid,          key "reversal:<original>", ref = original

  The idempotency keys make "recognize X" and "reverse Y" happen at most
  once even if the application checks below are bypassed.

RULES (checked in this order, nothing is written on failure):
  Recognize: entry must be Scheduled        -> AlreadyRecognizedError
             asOf >= recognition date       -> NotYetDueError
             total + amount <= allocated    -> OverRecognitionError
  Adjust:    reference must be journaled    -> ErrNotRecognized
             total + delta <= allocated     -> OverRecognitionError
  Reverse:   reference must be journaled    -> ErrNotRecognized
             not a reversal, not reversed   -> ErrAlreadyReversed
             total - amount <= allocated    -> OverRecognitionError

  The original record is never touched. Reversing a recognition leaves the
  schedule entry Recognized and appends the negation next to it.

CONCURRENCY:
  Every mutating call holds the contract lock across check and append.

SEE ALSO:
  - generic/ledger.go: journal semantics
  - summary.go: per-obligation totals built from the same journal
*/
package revenue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/generic"
)

const (
	keyRecognition = "recognition:"
	keyAdjustment  = "adjustment:"
	keyReversal    = "reversal:"
)

// LedgerConfig wires a Ledger. Locks should be shared with the Engine that
// regenerates the same contracts.
type LedgerConfig struct {
	Journal     generic.Store
	Obligations ObligationRepository
	Schedule    ScheduleRepository
	Locks       *ContractLocks
	Metrics     *Metrics
	Logger      zerolog.Logger
	Now         func() time.Time
	CreatedBy   string
}

type Ledger struct {
	journal     generic.Store
	obligations ObligationRepository
	schedule    ScheduleRepository
	locks       *ContractLocks
	metrics     *Metrics
	log         zerolog.Logger
	now         func() time.Time
	createdBy   string
}

func NewLedger(cfg LedgerConfig) *Ledger {
	if cfg.Locks == nil {
		cfg.Locks = NewContractLocks()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CreatedBy == "" {
		cfg.CreatedBy = "system"
	}
	return &Ledger{
		journal:     cfg.Journal,
		obligations: cfg.Obligations,
		schedule:    cfg.Schedule,
		locks:       cfg.Locks,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		now:         cfg.Now,
		createdBy:   cfg.CreatedBy,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Recognize moves a Scheduled entry to Recognized as of asOf.
func (l *Ledger) Recognize(ctx context.Context, id EntryID, asOf generic.TimePoint) (ScheduleEntry, error) {
	entry, err := l.schedule.GetEntry(ctx, id)
	if err != nil {
		return ScheduleEntry{}, err
	}

	unlock := l.locks.Lock(entry.ContractID)
	defer unlock()

	// Re-read under the lock: a concurrent Process may have replaced it.
	if entry, err = l.schedule.GetEntry(ctx, id); err != nil {
		return ScheduleEntry{}, err
	}

	ob, err := l.obligations.GetObligation(ctx, entry.ObligationID)
	if err != nil {
		return ScheduleEntry{}, err
	}

	var out ScheduleEntry
	err = l.withJournal(ctx, func(j generic.Ledger) error {
		var err error
		out, err = l.recognize(ctx, j, ob, entry, asOf)
		return err
	})
	if err != nil {
		l.reject(ctx, "recognize", string(id), err)
		return ScheduleEntry{}, err
	}
	return out, nil
}

// RecognizeDue recognizes every Scheduled entry of the contract dated on or
// before asOf, oldest first. Entries already in the journal are skipped
// without looking at their obligation. It stops at the first failure;
// entries recognized before it stay recognized.
func (l *Ledger) RecognizeDue(ctx context.Context, contractID ContractID, asOf generic.TimePoint) ([]ScheduleEntry, error) {
	unlock := l.locks.Lock(contractID)
	defer unlock()

	entries, err := l.schedule.Schedule(ctx, contractID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecognitionDate.Before(entries[j].RecognitionDate)
	})
	obligations, err := l.obligations.Obligations(ctx, contractID)
	if err != nil {
		return nil, err
	}
	byID := make(map[ObligationID]AllocatedObligation, len(obligations))
	for _, ob := range obligations {
		byID[ob.ID] = ob
	}
	txs, err := l.journal.LoadEntity(ctx, generic.EntityID(contractID))
	if err != nil {
		return nil, err
	}
	journaled := make(map[EntryID]bool, len(txs))
	for _, tx := range txs {
		if tx.Type == generic.TxRecognition {
			journaled[EntryID(tx.ID)] = true
		}
	}

	var recognized []ScheduleEntry
	for _, entry := range entries {
		if entry.RecognitionDate.After(asOf) {
			break
		}
		if err := ctx.Err(); err != nil {
			return recognized, err
		}
		if journaled[entry.ID] {
			continue
		}

		ob, ok := byID[entry.ObligationID]
		if !ok {
			return recognized, fmt.Errorf("entry %s: %w", entry.ID, generic.ErrObligationNotFound)
		}

		var out ScheduleEntry
		err := l.withJournal(ctx, func(j generic.Ledger) error {
			done, err := j.HasKey(ctx, keyRecognition+string(entry.ID))
			if err != nil || done {
				return err
			}
			out, err = l.recognize(ctx, j, ob, entry, asOf)
			return err
		})
		if err != nil {
			l.reject(ctx, "recognize_due", string(entry.ID), err)
			return recognized, fmt.Errorf("recognize entry %s: %w", entry.ID, err)
		}
		if out.ID != "" {
			recognized = append(recognized, out)
		}
	}
	return recognized, nil
}

func (l *Ledger) recognize(ctx context.Context, j generic.Ledger, ob AllocatedObligation, entry ScheduleEntry, asOf generic.TimePoint) (ScheduleEntry, error) {
	if _, err := j.Transaction(ctx, generic.TransactionID(entry.ID)); err == nil {
		return ScheduleEntry{}, &generic.AlreadyRecognizedError{
			EntryID: generic.TransactionID(entry.ID),
			Status:  string(StatusRecognized),
		}
	} else if !errors.Is(err, generic.ErrEntryNotFound) {
		return ScheduleEntry{}, err
	}

	if entry.RecognitionDate.After(asOf) {
		return ScheduleEntry{}, &generic.NotYetDueError{
			EntryID: generic.TransactionID(entry.ID),
			DueOn:   entry.RecognitionDate,
			AsOf:    asOf,
		}
	}

	if err := checkAllocation(ctx, j, ob, entry.Amount); err != nil {
		return ScheduleEntry{}, err
	}

	tx := generic.Transaction{
		ID:             generic.TransactionID(entry.ID),
		EntityID:       generic.EntityID(entry.ContractID),
		AccountID:      generic.AccountID(entry.ObligationID),
		EffectiveAt:    entry.RecognitionDate,
		Delta:          entry.Amount,
		Type:           generic.TxRecognition,
		Reason:         "recognized as of " + asOf.String(),
		IdempotencyKey: keyRecognition + string(entry.ID),
		Metadata:       map[string]string{"sequence": strconv.Itoa(entry.Sequence)},
		CreatedBy:      l.createdBy,
		CreatedAt:      l.now().UTC(),
	}
	if err := j.Append(ctx, tx); err != nil {
		return ScheduleEntry{}, err
	}
	l.metrics.appended(ctx, string(generic.TxRecognition), entry.Amount.Value.InexactFloat64())

	entry.Status = StatusRecognized
	return entry, nil
}

// Adjust appends a signed delta against a journaled record. The delta is
// rounded to the minimal unit.
func (l *Ledger) Adjust(ctx context.Context, ref EntryID, delta generic.Amount, reason string) (ScheduleEntry, error) {
	original, err := l.journaled(ctx, ref)
	if err != nil {
		l.reject(ctx, "adjust", string(ref), err)
		return ScheduleEntry{}, err
	}

	unlock := l.locks.Lock(ContractID(original.EntityID))
	defer unlock()

	ob, err := l.obligations.GetObligation(ctx, ObligationID(original.AccountID))
	if err != nil {
		return ScheduleEntry{}, err
	}

	delta = delta.Round()
	id := generic.TransactionID(uuid.New().String())
	tx := generic.Transaction{
		ID:             id,
		EntityID:       original.EntityID,
		AccountID:      original.AccountID,
		EffectiveAt:    generic.FromTime(l.now()),
		Delta:          delta,
		Type:           generic.TxAdjustment,
		ReferenceID:    original.ID,
		Reason:         reason,
		IdempotencyKey: keyAdjustment + string(id),
		CreatedBy:      l.createdBy,
		CreatedAt:      l.now().UTC(),
	}

	err = l.withJournal(ctx, func(j generic.Ledger) error {
		if err := checkAllocation(ctx, j, ob, delta); err != nil {
			return err
		}
		return j.Append(ctx, tx)
	})
	if err != nil {
		l.reject(ctx, "adjust", string(ref), err)
		return ScheduleEntry{}, err
	}
	l.metrics.appended(ctx, string(generic.TxAdjustment), delta.Value.InexactFloat64())
	return historyEntry(tx, 0), nil
}

// Reverse appends the exact negation of a journaled record. A record can be
// reversed once; reversals themselves cannot be reversed.
func (l *Ledger) Reverse(ctx context.Context, ref EntryID, reason string) (ScheduleEntry, error) {
	original, err := l.journaled(ctx, ref)
	if err != nil {
		l.reject(ctx, "reverse", string(ref), err)
		return ScheduleEntry{}, err
	}
	if original.Type == generic.TxReversal {
		l.reject(ctx, "reverse", string(ref), generic.ErrAlreadyReversed)
		return ScheduleEntry{}, generic.ErrAlreadyReversed
	}

	unlock := l.locks.Lock(ContractID(original.EntityID))
	defer unlock()

	ob, err := l.obligations.GetObligation(ctx, ObligationID(original.AccountID))
	if err != nil {
		return ScheduleEntry{}, err
	}

	delta := original.Delta.Neg()
	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.New().String()),
		EntityID:       original.EntityID,
		AccountID:      original.AccountID,
		EffectiveAt:    generic.FromTime(l.now()),
		Delta:          delta,
		Type:           generic.TxReversal,
		ReferenceID:    original.ID,
		Reason:         reason,
		IdempotencyKey: keyReversal + string(original.ID),
		CreatedBy:      l.createdBy,
		CreatedAt:      l.now().UTC(),
	}

	err = l.withJournal(ctx, func(j generic.Ledger) error {
		reversed, err := j.HasKey(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if reversed {
			return generic.ErrAlreadyReversed
		}
		if err := checkAllocation(ctx, j, ob, delta); err != nil {
			return err
		}
		return j.Append(ctx, tx)
	})
	if err != nil {
		l.reject(ctx, "reverse", string(ref), err)
		return ScheduleEntry{}, err
	}
	l.metrics.appended(ctx, string(generic.TxReversal), delta.Value.InexactFloat64())
	return historyEntry(tx, 0), nil
}

// journaled returns the journal record for ref. A ref that only exists as a
// Scheduled entry yields ErrNotRecognized.
func (l *Ledger) journaled(ctx context.Context, ref EntryID) (generic.Transaction, error) {
	tx, err := l.journal.Get(ctx, generic.TransactionID(ref))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, generic.ErrEntryNotFound) {
		return generic.Transaction{}, err
	}
	if _, err := l.schedule.GetEntry(ctx, ref); err == nil {
		return generic.Transaction{}, fmt.Errorf("entry %s: %w", ref, generic.ErrNotRecognized)
	}
	return generic.Transaction{}, fmt.Errorf("entry %s: %w", ref, generic.ErrEntryNotFound)
}

// checkAllocation rejects delta if it would push the obligation's journal
// total past its allocation.
func checkAllocation(ctx context.Context, j generic.Ledger, ob AllocatedObligation, delta generic.Amount) error {
	total, err := j.Total(ctx, generic.EntityID(ob.ContractID), generic.AccountID(ob.ID))
	if err != nil {
		return err
	}
	if total.Add(delta).GreaterThan(ob.AllocatedAmount) {
		return &generic.OverRecognitionError{
			AccountID:  generic.AccountID(ob.ID),
			Allocated:  ob.AllocatedAmount,
			Recognized: total,
			Delta:      delta,
		}
	}
	return nil
}

// withJournal runs fn in a journal transaction when the store supports one.
func (l *Ledger) withJournal(ctx context.Context, fn func(generic.Ledger) error) error {
	if txs, ok := l.journal.(generic.TxStore); ok {
		return txs.WithTx(ctx, func(s generic.Store) error {
			return fn(generic.NewLedger(s))
		})
	}
	return fn(generic.NewLedger(l.journal))
}

func (l *Ledger) reject(ctx context.Context, op, ref string, err error) {
	l.metrics.rejected(ctx, op, err)
	l.log.Warn().Err(err).Str("operation", op).Str("ref", ref).Msg("ledger operation rejected")
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, generic.ErrNotYetDue):
		return "not_yet_due"
	case errors.Is(err, generic.ErrAlreadyRecognized):
		return "already_recognized"
	case errors.Is(err, generic.ErrOverRecognition):
		return "over_recognition"
	case errors.Is(err, generic.ErrNotRecognized):
		return "not_recognized"
	case errors.Is(err, generic.ErrAlreadyReversed):
		return "already_reversed"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return "duplicate"
	case generic.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// TotalRecognized folds every recognition, adjustment and reversal recorded
// for the obligation.
func (l *Ledger) TotalRecognized(ctx context.Context, obligationID ObligationID) (generic.Amount, error) {
	ob, err := l.obligations.GetObligation(ctx, obligationID)
	if err != nil {
		return generic.Amount{}, err
	}
	return generic.NewLedger(l.journal).Total(ctx, generic.EntityID(ob.ContractID), generic.AccountID(obligationID))
}

// RemainingRevenue is allocated minus recognized.
func (l *Ledger) RemainingRevenue(ctx context.Context, obligationID ObligationID) (generic.Amount, error) {
	ob, err := l.obligations.GetObligation(ctx, obligationID)
	if err != nil {
		return generic.Amount{}, err
	}
	total, err := generic.NewLedger(l.journal).Total(ctx, generic.EntityID(ob.ContractID), generic.AccountID(obligationID))
	if err != nil {
		return generic.Amount{}, err
	}
	return ob.AllocatedAmount.Sub(total), nil
}

// Schedule returns the contract's generated entries with their status
// derived from the journal.
func (l *Ledger) Schedule(ctx context.Context, contractID ContractID) ([]ScheduleEntry, error) {
	entries, err := l.schedule.Schedule(ctx, contractID)
	if err != nil {
		return nil, err
	}
	txs, err := l.journal.LoadEntity(ctx, generic.EntityID(contractID))
	if err != nil {
		return nil, err
	}
	journaled := make(map[generic.TransactionID]bool, len(txs))
	for _, tx := range txs {
		if tx.Type == generic.TxRecognition {
			journaled[tx.ID] = true
		}
	}
	for i := range entries {
		if journaled[generic.TransactionID(entries[i].ID)] {
			entries[i].Status = StatusRecognized
		}
	}
	return entries, nil
}

// History returns every journal record of the contract in append order.
func (l *Ledger) History(ctx context.Context, contractID ContractID) ([]ScheduleEntry, error) {
	txs, err := l.journal.LoadEntity(ctx, generic.EntityID(contractID))
	if err != nil {
		return nil, err
	}
	out := make([]ScheduleEntry, len(txs))
	for i, tx := range txs {
		out[i] = historyEntry(tx, i)
	}
	return out, nil
}

func historyEntry(tx generic.Transaction, seq int) ScheduleEntry {
	status := StatusRecognized
	switch tx.Type {
	case generic.TxAdjustment:
		status = StatusAdjusted
	case generic.TxReversal:
		status = StatusReversed
	}
	return ScheduleEntry{
		ID:              EntryID(tx.ID),
		ContractID:      ContractID(tx.EntityID),
		ObligationID:    ObligationID(tx.AccountID),
		Sequence:        seq,
		RecognitionDate: tx.EffectiveAt,
		Amount:          tx.Delta,
		Status:          status,
		ReferenceID:     EntryID(tx.ReferenceID),
		Reason:          tx.Reason,
	}
}
