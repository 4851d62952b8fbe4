package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
	"github.com/warp/revenue-engine/revenue"
)

var _ revenue.Repository = (*Store)(nil)

// =============================================================================
// CONTRACTS
// =============================================================================

const contractColumns = `id, customer, value, start_date, end_date, transaction_price`

// SaveContract inserts or replaces a contract.
func (s *Store) SaveContract(ctx context.Context, c revenue.Contract) error {
	query := s.rebind(`
		INSERT INTO contracts (` + contractColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer = excluded.customer,
			value = excluded.value,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			transaction_price = excluded.transaction_price
	`)
	_, err := s.db.ExecContext(ctx, query,
		string(c.ID),
		nullString(c.Customer),
		c.Value.Value.String(),
		c.StartDate.String(),
		nullDate(c.EndDate),
		nullAmount(c.TransactionPrice),
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id revenue.ContractID) (revenue.Contract, error) {
	query := s.rebind(`SELECT ` + contractColumns + ` FROM contracts WHERE id = ?`)
	contracts, err := s.queryContracts(ctx, query, string(id))
	if err != nil {
		return revenue.Contract{}, err
	}
	if len(contracts) == 0 {
		return revenue.Contract{}, generic.ErrContractNotFound
	}
	return contracts[0], nil
}

func (s *Store) ListContracts(ctx context.Context) ([]revenue.Contract, error) {
	return s.queryContracts(ctx, `SELECT `+contractColumns+` FROM contracts ORDER BY id`)
}

func (s *Store) queryContracts(ctx context.Context, query string, args ...any) ([]revenue.Contract, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []revenue.Contract
	for rows.Next() {
		var (
			c         revenue.Contract
			id        string
			customer  sql.NullString
			value     string
			startDate string
			endDate   sql.NullString
			price     sql.NullString
		)
		if err := rows.Scan(&id, &customer, &value, &startDate, &endDate, &price); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		c.ID = revenue.ContractID(id)
		c.Customer = customer.String
		if c.Value, err = generic.ParseAmount(value); err != nil {
			return nil, err
		}
		if c.StartDate, err = generic.ParseDate(startDate); err != nil {
			return nil, err
		}
		if c.EndDate, err = parseNullDate(endDate); err != nil {
			return nil, err
		}
		if c.TransactionPrice, err = parseNullAmount(price); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// =============================================================================
// CANDIDATES & VARIABLE CONSIDERATION
// =============================================================================

func (s *Store) SaveCandidates(ctx context.Context, id revenue.ContractID, candidates []revenue.ObligationCandidate) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, s.rebind(`DELETE FROM candidates WHERE contract_id = ?`), string(id)); err != nil {
		return fmt.Errorf("failed to clear candidates: %w", err)
	}
	insert := s.rebind(`
		INSERT INTO candidates
		(contract_id, position, description, standalone_selling_price, satisfaction_method, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for i, c := range candidates {
		_, err := sqlTx.ExecContext(ctx, insert,
			string(id), i, c.Description, c.StandaloneSellingPrice.Value.String(),
			nullString(string(c.SatisfactionMethod)), nullDate(c.StartDate), nullDate(c.EndDate),
		)
		if err != nil {
			return fmt.Errorf("failed to save candidate %d: %w", i, err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) Candidates(ctx context.Context, id revenue.ContractID) ([]revenue.ObligationCandidate, error) {
	query := s.rebind(`
		SELECT description, standalone_selling_price, satisfaction_method, start_date, end_date
		FROM candidates WHERE contract_id = ? ORDER BY position
	`)
	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var out []revenue.ObligationCandidate
	for rows.Next() {
		var (
			c                  revenue.ObligationCandidate
			ssp                string
			method, start, end sql.NullString
		)
		if err := rows.Scan(&c.Description, &ssp, &method, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if c.StandaloneSellingPrice, err = generic.ParseAmount(ssp); err != nil {
			return nil, err
		}
		c.SatisfactionMethod = revenue.SatisfactionMethod(method.String)
		if c.StartDate, err = parseNullDate(start); err != nil {
			return nil, err
		}
		if c.EndDate, err = parseNullDate(end); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AddConsideration(ctx context.Context, id revenue.ContractID, el revenue.VariableConsiderationElement) error {
	var factor sql.NullString
	if el.ConstraintFactor != nil {
		factor = sql.NullString{String: el.ConstraintFactor.String(), Valid: true}
	}
	query := s.rebind(`
		INSERT INTO considerations (contract_id, consideration_type, amount, constraint_factor, rationale)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		string(id), string(el.Type), el.Amount.Value.String(), factor, nullString(el.Rationale),
	)
	if err != nil {
		return fmt.Errorf("failed to add consideration: %w", err)
	}
	return nil
}

func (s *Store) Considerations(ctx context.Context, id revenue.ContractID) ([]revenue.VariableConsiderationElement, error) {
	query := s.rebind(`
		SELECT consideration_type, amount, constraint_factor, rationale
		FROM considerations WHERE contract_id = ? ORDER BY seq
	`)
	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query considerations: %w", err)
	}
	defer rows.Close()

	var out []revenue.VariableConsiderationElement
	for rows.Next() {
		var (
			el                revenue.VariableConsiderationElement
			typ, amount       string
			factor, rationale sql.NullString
		)
		if err := rows.Scan(&typ, &amount, &factor, &rationale); err != nil {
			return nil, fmt.Errorf("failed to scan consideration: %w", err)
		}
		el.Type = revenue.ConsiderationType(typ)
		if el.Amount, err = generic.ParseAmount(amount); err != nil {
			return nil, err
		}
		if factor.Valid {
			f, err := decimal.NewFromString(factor.String)
			if err != nil {
				return nil, fmt.Errorf("invalid constraint factor %q: %w", factor.String, err)
			}
			el.ConstraintFactor = &f
		}
		el.Rationale = rationale.String
		out = append(out, el)
	}
	return out, rows.Err()
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

const obligationColumns = `id, contract_id, description, standalone_selling_price, satisfaction_method,
	start_date, end_date, status, allocated_amount, percent`

func (s *Store) ReplaceObligations(ctx context.Context, id revenue.ContractID, obligations []revenue.AllocatedObligation) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, s.rebind(`DELETE FROM obligations WHERE contract_id = ?`), string(id)); err != nil {
		return fmt.Errorf("failed to clear obligations: %w", err)
	}
	insert := s.rebind(`
		INSERT INTO obligations (position, ` + obligationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, ob := range obligations {
		_, err := sqlTx.ExecContext(ctx, insert,
			i, string(ob.ID), string(id), ob.Description, ob.StandaloneSellingPrice.Value.String(),
			string(ob.SatisfactionMethod), ob.StartDate.String(), ob.EndDate.String(),
			string(ob.Status), ob.AllocatedAmount.Value.String(), ob.Percent.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save obligation %s: %w", ob.ID, err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) Obligations(ctx context.Context, id revenue.ContractID) ([]revenue.AllocatedObligation, error) {
	query := s.rebind(`SELECT ` + obligationColumns + ` FROM obligations WHERE contract_id = ? ORDER BY position`)
	return s.queryObligations(ctx, query, string(id))
}

func (s *Store) GetObligation(ctx context.Context, id revenue.ObligationID) (revenue.AllocatedObligation, error) {
	query := s.rebind(`SELECT ` + obligationColumns + ` FROM obligations WHERE id = ?`)
	obs, err := s.queryObligations(ctx, query, string(id))
	if err != nil {
		return revenue.AllocatedObligation{}, err
	}
	if len(obs) == 0 {
		return revenue.AllocatedObligation{}, generic.ErrObligationNotFound
	}
	return obs[0], nil
}

func (s *Store) queryObligations(ctx context.Context, query string, args ...any) ([]revenue.AllocatedObligation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var out []revenue.AllocatedObligation
	for rows.Next() {
		var (
			ob                                  revenue.AllocatedObligation
			id, contractID, method, status      string
			ssp, start, end, allocated, percent string
		)
		err := rows.Scan(&id, &contractID, &ob.Description, &ssp, &method, &start, &end, &status, &allocated, &percent)
		if err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		ob.ID = revenue.ObligationID(id)
		ob.ContractID = revenue.ContractID(contractID)
		ob.SatisfactionMethod = revenue.SatisfactionMethod(method)
		ob.Status = revenue.ObligationStatus(status)
		if ob.StandaloneSellingPrice, err = generic.ParseAmount(ssp); err != nil {
			return nil, err
		}
		if ob.AllocatedAmount, err = generic.ParseAmount(allocated); err != nil {
			return nil, err
		}
		if ob.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if ob.EndDate, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		if ob.Percent, err = decimal.NewFromString(percent); err != nil {
			return nil, fmt.Errorf("invalid percent %q: %w", percent, err)
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

// =============================================================================
// SCHEDULE
// =============================================================================

const entryColumns = `id, contract_id, obligation_id, sequence, recognition_date, amount`

// ReplaceSchedule deletes the contract's entries not listed in keep and
// inserts entries. Rows for kept entries are never touched.
func (s *Store) ReplaceSchedule(ctx context.Context, id revenue.ContractID, entries []revenue.ScheduleEntry, keep map[revenue.EntryID]bool) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	rows, err := sqlTx.QueryContext(ctx, s.rebind(`SELECT id FROM schedule_entries WHERE contract_id = ?`), string(id))
	if err != nil {
		return fmt.Errorf("failed to query schedule: %w", err)
	}
	var stale []string
	for rows.Next() {
		var entryID string
		if err := rows.Scan(&entryID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		if !keep[revenue.EntryID(entryID)] {
			stale = append(stale, entryID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	del := s.rebind(`DELETE FROM schedule_entries WHERE id = ?`)
	for _, entryID := range stale {
		if _, err := sqlTx.ExecContext(ctx, del, entryID); err != nil {
			return fmt.Errorf("failed to delete schedule entry %s: %w", entryID, err)
		}
	}

	insert := s.rebind(`INSERT INTO schedule_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, e := range entries {
		_, err := sqlTx.ExecContext(ctx, insert,
			string(e.ID), string(id), string(e.ObligationID), e.Sequence,
			e.RecognitionDate.String(), e.Amount.Value.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert schedule entry %s: %w", e.ID, err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) Schedule(ctx context.Context, id revenue.ContractID) ([]revenue.ScheduleEntry, error) {
	query := s.rebind(`
		SELECT ` + entryColumns + ` FROM schedule_entries
		WHERE contract_id = ?
		ORDER BY recognition_date, obligation_id, sequence
	`)
	return s.queryEntries(ctx, query, string(id))
}

func (s *Store) GetEntry(ctx context.Context, id revenue.EntryID) (revenue.ScheduleEntry, error) {
	query := s.rebind(`SELECT ` + entryColumns + ` FROM schedule_entries WHERE id = ?`)
	entries, err := s.queryEntries(ctx, query, string(id))
	if err != nil {
		return revenue.ScheduleEntry{}, err
	}
	if len(entries) == 0 {
		return revenue.ScheduleEntry{}, generic.ErrEntryNotFound
	}
	return entries[0], nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]revenue.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var out []revenue.ScheduleEntry
	for rows.Next() {
		var (
			e                            revenue.ScheduleEntry
			id, contractID, obligationID string
			date, amount                 string
		)
		if err := rows.Scan(&id, &contractID, &obligationID, &e.Sequence, &date, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		e.ID = revenue.EntryID(id)
		e.ContractID = revenue.ContractID(contractID)
		e.ObligationID = revenue.ObligationID(obligationID)
		e.Status = revenue.StatusScheduled
		if e.RecognitionDate, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		if e.Amount, err = generic.ParseAmount(amount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// NULLABLE COLUMNS
// =============================================================================

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (*generic.TimePoint, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func nullAmount(a *generic.Amount) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Value.String(), Valid: true}
}

func parseNullAmount(ns sql.NullString) (*generic.Amount, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	a, err := generic.ParseAmount(ns.String)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
