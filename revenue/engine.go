/*
engine.go - Contract pipeline

PURPOSE:
  Runs Resolver -> Allocator -> Generator for a contract and persists the
  result, under the same per-contract lock the Ledger uses.

PROCESS(contract):
  1. price     = ResolvePrice(contract.Value, considerations)
  2. allocated = Allocate(contract, price, suggester.Suggest(contract))
  3. check allocated against the journal:
       an obligation with journal records must still be allocated
       its allocation must cover what is already recognized
  4. entries   = GenerateRemainingSchedule(ob, journal[ob]) per obligation
  5. persist:
       contract.TransactionPrice = price
       obligations               = allocated            (replaced)
       schedule                  = entries + recognized (Scheduled replaced)

  Any failure in 1-4 leaves storage untouched. Schedule entries already in
  the journal are kept and never regenerated; fresh entries only carry the
  part of each allocation not yet recognized, over months with no
  recognized entry.

PARALLELISM:
  Contracts are independent. ProcessAll and RecognizeAllDue fan out with an
  errgroup bounded by Workers.
*/
package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/generic"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds multi-contract runs when EngineConfig.Workers is 0.
const DefaultWorkers = 4

type EngineConfig struct {
	Repository Repository
	Journal    generic.Store

	// Suggester defaults to the candidates stored in Repository.
	Suggester ObligationSuggester

	// Considerations defaults to Repository.
	Considerations ConsiderationSource

	Metrics *Metrics
	Logger  zerolog.Logger
	Workers int
	Now     func() time.Time
}

// Result describes one pipeline run.
type Result struct {
	Contract    Contract
	Resolution  PriceResolution
	Obligations []AllocatedObligation
	Schedule    []ScheduleEntry

	// Preserved counts entries kept because they are already recognized.
	Preserved int
}

type Engine struct {
	repo           Repository
	journal        generic.Store
	suggester      ObligationSuggester
	considerations ConsiderationSource
	locks          *ContractLocks
	metrics        *Metrics
	log            zerolog.Logger
	workers        int
	ledger         *Ledger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Suggester == nil {
		cfg.Suggester = StoredSuggester{Candidates: cfg.Repository}
	}
	if cfg.Considerations == nil {
		cfg.Considerations = cfg.Repository
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	locks := NewContractLocks()
	e := &Engine{
		repo:           cfg.Repository,
		journal:        cfg.Journal,
		suggester:      cfg.Suggester,
		considerations: cfg.Considerations,
		locks:          locks,
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
		workers:        cfg.Workers,
	}
	e.ledger = NewLedger(LedgerConfig{
		Journal:     cfg.Journal,
		Obligations: cfg.Repository,
		Schedule:    cfg.Repository,
		Locks:       locks,
		Metrics:     cfg.Metrics,
		Logger:      cfg.Logger,
		Now:         cfg.Now,
	})
	return e
}

// Ledger shares the engine's locks, so recognition never interleaves with
// regeneration of the same contract.
func (e *Engine) Ledger() *Ledger { return e.ledger }

func (e *Engine) Repository() Repository { return e.repo }

// =============================================================================
// SINGLE CONTRACT
// =============================================================================

func (e *Engine) Process(ctx context.Context, id ContractID) (Result, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	res, err := e.process(ctx, id)
	if err != nil {
		e.metrics.contractProcessed(ctx, "failed")
		e.log.Warn().Err(err).Str("contract_id", string(id)).Msg("contract processing failed")
		return Result{}, err
	}
	e.metrics.contractProcessed(ctx, "ok")
	e.log.Debug().
		Str("contract_id", string(id)).
		Str("price", res.Resolution.Price.String()).
		Int("obligations", len(res.Obligations)).
		Int("entries", len(res.Schedule)).
		Int("preserved", res.Preserved).
		Msg("contract processed")
	return res, nil
}

func (e *Engine) process(ctx context.Context, id ContractID) (Result, error) {
	contract, err := e.repo.GetContract(ctx, id)
	if err != nil {
		return Result{}, err
	}

	elements, err := e.considerations.Considerations(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load variable consideration: %w", err)
	}
	resolution, err := ResolvePrice(contract.Value, elements)
	if err != nil {
		return Result{}, err
	}

	candidates, err := e.suggester.Suggest(ctx, contract)
	if err != nil {
		return Result{}, fmt.Errorf("suggest obligations: %w", err)
	}
	allocated, err := Allocate(contract, resolution.Price, candidates)
	if err != nil {
		return Result{}, err
	}

	history, err := e.loadHistory(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if err := history.check(allocated); err != nil {
		return Result{}, err
	}

	var fresh []ScheduleEntry
	for _, ob := range allocated {
		for _, entry := range GenerateRemainingSchedule(ob, history.recognized(ob.ID)) {
			if !history.entries[entry.ID] {
				fresh = append(fresh, entry)
			}
		}
	}

	kept, err := e.keptEntries(ctx, id, history.entries)
	if err != nil {
		return Result{}, err
	}

	price := resolution.Price
	contract.TransactionPrice = &price
	if err := e.repo.SaveContract(ctx, contract); err != nil {
		return Result{}, fmt.Errorf("save transaction price: %w", err)
	}
	if err := e.repo.ReplaceObligations(ctx, id, allocated); err != nil {
		return Result{}, fmt.Errorf("replace obligations: %w", err)
	}
	if err := e.repo.ReplaceSchedule(ctx, id, fresh, history.entries); err != nil {
		return Result{}, fmt.Errorf("replace schedule: %w", err)
	}

	schedule := append(kept, fresh...)
	SortEntries(schedule, allocated)
	return Result{
		Contract:    contract,
		Resolution:  resolution,
		Obligations: allocated,
		Schedule:    schedule,
		Preserved:   len(history.entries),
	}, nil
}

// journalHistory is the contract's journal folded per obligation.
type journalHistory struct {
	// entries holds the schedule entries that have a recognition.
	entries map[EntryID]bool
	totals  map[ObligationID]generic.Amount
	dates   map[ObligationID]map[string]bool
	order   []ObligationID
}

func (e *Engine) loadHistory(ctx context.Context, id ContractID) (journalHistory, error) {
	txs, err := e.journal.LoadEntity(ctx, generic.EntityID(id))
	if err != nil {
		return journalHistory{}, fmt.Errorf("load journal: %w", err)
	}
	h := journalHistory{
		entries: make(map[EntryID]bool),
		totals:  make(map[ObligationID]generic.Amount),
		dates:   make(map[ObligationID]map[string]bool),
	}
	for _, tx := range txs {
		ob := ObligationID(tx.AccountID)
		total, seen := h.totals[ob]
		if !seen {
			h.order = append(h.order, ob)
		}
		h.totals[ob] = total.Add(tx.Delta)
		if tx.Type != generic.TxRecognition {
			continue
		}
		h.entries[EntryID(tx.ID)] = true
		if h.dates[ob] == nil {
			h.dates[ob] = make(map[string]bool)
		}
		h.dates[ob][tx.EffectiveAt.String()] = true
	}
	return h, nil
}

func (h journalHistory) recognized(ob ObligationID) Recognized {
	total, ok := h.totals[ob]
	if !ok {
		total = generic.Zero()
	}
	return Recognized{Total: total, Dates: h.dates[ob]}
}

// check rejects an allocation that drops an obligation with journal records
// or allocates less than an obligation already recognized.
func (h journalHistory) check(allocated []AllocatedObligation) error {
	byID := make(map[ObligationID]AllocatedObligation, len(allocated))
	for _, ob := range allocated {
		byID[ob.ID] = ob
	}
	for _, id := range h.order {
		total := h.totals[id]
		ob, ok := byID[id]
		if !ok {
			return &generic.ObligationInUseError{AccountID: generic.AccountID(id), Recognized: total}
		}
		if total.GreaterThan(ob.AllocatedAmount) {
			return &generic.OverRecognitionError{
				AccountID:  generic.AccountID(id),
				Allocated:  ob.AllocatedAmount,
				Recognized: total,
				Delta:      generic.Zero(),
			}
		}
	}
	return nil
}

// keptEntries returns the stored entries that survive regeneration, marked
// Recognized.
func (e *Engine) keptEntries(ctx context.Context, id ContractID, keep map[EntryID]bool) ([]ScheduleEntry, error) {
	if len(keep) == 0 {
		return nil, nil
	}
	stored, err := e.repo.Schedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	var kept []ScheduleEntry
	for _, entry := range stored {
		if keep[entry.ID] {
			if entry.Status == StatusScheduled {
				entry.Status = StatusRecognized
			}
			kept = append(kept, entry)
		}
	}
	return kept, nil
}

// =============================================================================
// MANY CONTRACTS
// =============================================================================

// ProcessAll processes every contract, or the given ones. The first failure
// cancels the remaining work and is returned; results of contracts that
// finished are still returned.
func (e *Engine) ProcessAll(ctx context.Context, ids ...ContractID) ([]Result, error) {
	if len(ids) == 0 {
		var err error
		if ids, err = e.contractIDs(ctx); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range ids {
		g.Go(func() error {
			res, err := e.Process(gctx, id)
			if err != nil {
				return fmt.Errorf("contract %s: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()

	done := results[:0]
	for _, r := range results {
		if r.Contract.ID != "" {
			done = append(done, r)
		}
	}
	return done, err
}

// RecognizeAllDue runs Ledger.RecognizeDue for every contract. Failures are
// logged per contract and do not stop the others; the count of recognized
// entries is returned with the first error seen.
func (e *Engine) RecognizeAllDue(ctx context.Context, asOf generic.TimePoint) (int, error) {
	ids, err := e.contractIDs(ctx)
	if err != nil {
		return 0, err
	}

	counts := make([]int, len(ids))
	errs := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range ids {
		g.Go(func() error {
			recognized, err := e.ledger.RecognizeDue(gctx, id, asOf)
			counts[i] = len(recognized)
			if err != nil {
				errs[i] = fmt.Errorf("contract %s: %w", id, err)
				e.log.Warn().Err(err).Str("contract_id", string(id)).Msg("recognize due failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	var first error
	for i := range ids {
		total += counts[i]
		if first == nil && errs[i] != nil {
			first = errs[i]
		}
	}
	return total, first
}

func (e *Engine) contractIDs(ctx context.Context) ([]ContractID, error) {
	contracts, err := e.repo.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	ids := make([]ContractID, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
	}
	return ids, nil
}
