/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the API. Amounts travel as decimal strings ("1200.00") and
  dates as YYYY-MM-DD so nothing is lost to float conversion.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers (and factory for contract documents), not
  in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/contract.go: ContractJSON document type
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/factory"
	"github.com/warp/revenue-engine/revenue"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ReplaceObligationsRequest replaces a contract's candidate obligations.
type ReplaceObligationsRequest struct {
	Obligations []factory.ObligationJSON `json:"obligations"`
}

// AsOfRequest carries the recognition date. Empty means today.
type AsOfRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

type AdjustRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

type ReverseRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ContractDTO struct {
	ID               string `json:"id"`
	Customer         string `json:"customer,omitempty"`
	Value            string `json:"value"`
	TransactionPrice string `json:"transaction_price,omitempty"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
}

type ObligationDTO struct {
	ID                     string `json:"id"`
	Description            string `json:"description"`
	StandaloneSellingPrice string `json:"standalone_selling_price"`
	SatisfactionMethod     string `json:"satisfaction_method"`
	StartDate              string `json:"start_date"`
	EndDate                string `json:"end_date"`
	Status                 string `json:"status"`
	AllocatedAmount        string `json:"allocated_amount"`
	Percent                string `json:"percent"`
}

type EntryDTO struct {
	ID              string `json:"id"`
	ObligationID    string `json:"obligation_id"`
	Sequence        int    `json:"sequence"`
	RecognitionDate string `json:"recognition_date"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	ReferenceID     string `json:"reference_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type ContributionDTO struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Constrained string `json:"constrained"`
	Signed      string `json:"signed"`
	Disclose    bool   `json:"disclose,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
}

// ProcessDTO is the result of running the pipeline for a contract.
type ProcessDTO struct {
	Contract      ContractDTO       `json:"contract"`
	BaseValue     string            `json:"base_value"`
	Price         string            `json:"transaction_price"`
	Contributions []ContributionDTO `json:"contributions"`
	Obligations   []ObligationDTO   `json:"obligations"`
	Schedule      []EntryDTO        `json:"schedule"`
	Preserved     int               `json:"preserved_entries"`
}

type ObligationSummaryDTO struct {
	Obligation        ObligationDTO `json:"obligation"`
	Recognized        string        `json:"recognized"`
	Remaining         string        `json:"remaining"`
	Pending           string        `json:"pending"`
	PercentRecognized string        `json:"percent_recognized"`
	Entries           int           `json:"entries"`
	RecognizedEntries int           `json:"recognized_entries"`
}

type SummaryDTO struct {
	ContractID  string                 `json:"contract_id"`
	Allocated   string                 `json:"allocated"`
	Recognized  string                 `json:"recognized"`
	Remaining   string                 `json:"remaining"`
	Pending     string                 `json:"pending"`
	Obligations []ObligationSummaryDTO `json:"obligations"`
}

type RemainingDTO struct {
	ObligationID string `json:"obligation_id"`
	Recognized   string `json:"recognized"`
	Remaining    string `json:"remaining"`
}

type RecognizedDTO struct {
	Count   int        `json:"count"`
	Entries []EntryDTO `json:"entries,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toContractDTO(c revenue.Contract) ContractDTO {
	p := c.Period()
	dto := ContractDTO{
		ID:        string(c.ID),
		Customer:  c.Customer,
		Value:     c.Value.String(),
		StartDate: p.Start.String(),
		EndDate:   p.End.String(),
	}
	if c.TransactionPrice != nil {
		dto.TransactionPrice = c.TransactionPrice.String()
	}
	return dto
}

func toObligationDTO(o revenue.AllocatedObligation) ObligationDTO {
	return ObligationDTO{
		ID:                     string(o.ID),
		Description:            o.Description,
		StandaloneSellingPrice: o.StandaloneSellingPrice.String(),
		SatisfactionMethod:     string(o.SatisfactionMethod),
		StartDate:              o.StartDate.String(),
		EndDate:                o.EndDate.String(),
		Status:                 string(o.Status),
		AllocatedAmount:        o.AllocatedAmount.String(),
		Percent:                o.Percent.StringFixed(2),
	}
}

func toObligationDTOs(obs []revenue.AllocatedObligation) []ObligationDTO {
	out := make([]ObligationDTO, len(obs))
	for i, o := range obs {
		out[i] = toObligationDTO(o)
	}
	return out
}

func toEntryDTO(e revenue.ScheduleEntry) EntryDTO {
	return EntryDTO{
		ID:              string(e.ID),
		ObligationID:    string(e.ObligationID),
		Sequence:        e.Sequence,
		RecognitionDate: e.RecognitionDate.String(),
		Amount:          e.Amount.String(),
		Status:          string(e.Status),
		ReferenceID:     string(e.ReferenceID),
		Reason:          e.Reason,
	}
}

func toEntryDTOs(entries []revenue.ScheduleEntry) []EntryDTO {
	out := make([]EntryDTO, len(entries))
	for i, e := range entries {
		out[i] = toEntryDTO(e)
	}
	return out
}

func toProcessDTO(res revenue.Result) ProcessDTO {
	dto := ProcessDTO{
		Contract:      toContractDTO(res.Contract),
		BaseValue:     res.Resolution.BaseValue.String(),
		Price:         res.Resolution.Price.String(),
		Contributions: make([]ContributionDTO, len(res.Resolution.Contributions)),
		Obligations:   toObligationDTOs(res.Obligations),
		Schedule:      toEntryDTOs(res.Schedule),
		Preserved:     res.Preserved,
	}
	for i, c := range res.Resolution.Contributions {
		dto.Contributions[i] = ContributionDTO{
			Type:        string(c.Element.Type),
			Amount:      c.Element.Amount.String(),
			Constrained: c.Constrained.String(),
			Signed:      c.Signed.String(),
			Disclose:    c.Disclose,
			Rationale:   c.Element.Rationale,
		}
	}
	return dto
}

func toSummaryDTO(s revenue.ContractSummary) SummaryDTO {
	dto := SummaryDTO{
		ContractID:  string(s.ContractID),
		Allocated:   s.Allocated.String(),
		Recognized:  s.Recognized.String(),
		Remaining:   s.Remaining.String(),
		Pending:     s.Pending.String(),
		Obligations: make([]ObligationSummaryDTO, len(s.Obligations)),
	}
	for i, o := range s.Obligations {
		dto.Obligations[i] = ObligationSummaryDTO{
			Obligation:        toObligationDTO(o.Obligation),
			Recognized:        o.Recognized.String(),
			Remaining:         o.Remaining.String(),
			Pending:           o.Pending.String(),
			PercentRecognized: o.PercentRecognized.StringFixed(2),
			Entries:           o.Entries,
			RecognizedEntries: o.RecognizedEntries,
		}
	}
	return dto
}
