/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts a JSON contract document (the contract header, its candidate
  obligations and its variable consideration) into revenue types, and back.
  The HTTP API ingests contracts in this shape; tests and fixtures use it
  too.

JSON SCHEMA:
  {
    "id": "c-100",
    "customer": "Acme",
    "value": "1200.00",
    "start_date": "2024-01-15",
    "end_date": "2024-04-15",
    "obligations": [
      {
        "description": "Platform subscription",
        "standalone_selling_price": "1000.00",
        "satisfaction_method": "over_time"
      },
      {
        "description": "Onboarding",
        "standalone_selling_price": "200.00",
        "satisfaction_method": "point_in_time",
        "start_date": "2024-01-20"
      }
    ],
    "variable_consideration": [
      {"type": "bonus", "amount": "300.00", "constraint_factor": "0.5"},
      {"type": "penalty", "amount": "50.00", "rationale": "SLA breach"}
    ]
  }

  Amounts are decimal strings so no float rounding sneaks in. A JSON number
  is accepted as well.

VALIDATION:
  - id and start_date are required
  - value, standalone selling prices must not be negative
  - satisfaction_method defaults to over_time
  - constraint_factor must be within [0,1]

SEE ALSO:
  - revenue/types.go: target types
  - api/handlers.go: POST /api/contracts
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/generic"
	"github.com/warp/revenue-engine/revenue"
)

// ErrInvalidDocument wraps every validation failure of a contract document.
var ErrInvalidDocument = errors.New("invalid contract document")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type ContractJSON struct {
	ID            string              `json:"id"`
	Customer      string              `json:"customer,omitempty"`
	Value         decimal.Decimal     `json:"value"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date,omitempty"`
	Obligations   []ObligationJSON    `json:"obligations,omitempty"`
	Consideration []ConsiderationJSON `json:"variable_consideration,omitempty"`
}

type ObligationJSON struct {
	Description            string          `json:"description"`
	StandaloneSellingPrice decimal.Decimal `json:"standalone_selling_price"`
	SatisfactionMethod     string          `json:"satisfaction_method,omitempty"`
	StartDate              string          `json:"start_date,omitempty"`
	EndDate                string          `json:"end_date,omitempty"`
}

type ConsiderationJSON struct {
	Type             string           `json:"type"`
	Amount           decimal.Decimal  `json:"amount"`
	ConstraintFactor *decimal.Decimal `json:"constraint_factor,omitempty"`
	Rationale        string           `json:"rationale,omitempty"`
}

// Document is a parsed, validated contract document.
type Document struct {
	Contract       revenue.Contract
	Candidates     []revenue.ObligationCandidate
	Considerations []revenue.VariableConsiderationElement
}

// =============================================================================
// CONTRACT FACTORY
// =============================================================================

type ContractFactory struct{}

func NewContractFactory() *ContractFactory {
	return &ContractFactory{}
}

// ParseContract parses and validates a JSON contract document.
func (f *ContractFactory) ParseContract(data []byte) (Document, error) {
	var cj ContractJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return f.FromJSON(cj)
}

// FromJSON validates cj and converts it to revenue types.
func (f *ContractFactory) FromJSON(cj ContractJSON) (Document, error) {
	if strings.TrimSpace(cj.ID) == "" {
		return Document{}, invalid("id is required")
	}
	if cj.Value.IsNegative() {
		return Document{}, invalid("value %s is negative", cj.Value)
	}
	start, err := parseRequiredDate("start_date", cj.StartDate)
	if err != nil {
		return Document{}, err
	}
	end, err := parseOptionalDate("end_date", cj.EndDate)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		Contract: revenue.Contract{
			ID:        revenue.ContractID(cj.ID),
			Customer:  cj.Customer,
			Value:     generic.AmountOf(cj.Value),
			StartDate: start,
			EndDate:   end,
		},
	}

	for i, oj := range cj.Obligations {
		c, err := parseObligation(i, oj)
		if err != nil {
			return Document{}, err
		}
		doc.Candidates = append(doc.Candidates, c)
	}

	for i, vj := range cj.Consideration {
		el, err := ParseConsideration(vj)
		if err != nil {
			return Document{}, fmt.Errorf("variable_consideration[%d]: %w", i, err)
		}
		doc.Considerations = append(doc.Considerations, el)
	}

	return doc, nil
}

// ParseObligations converts a bare candidate list, as sent when replacing
// a contract's obligations.
func (f *ContractFactory) ParseObligations(list []ObligationJSON) ([]revenue.ObligationCandidate, error) {
	out := make([]revenue.ObligationCandidate, 0, len(list))
	for i, oj := range list {
		c, err := parseObligation(i, oj)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ToJSON converts a document back to its JSON shape.
func (f *ContractFactory) ToJSON(doc Document) ContractJSON {
	c := doc.Contract
	cj := ContractJSON{
		ID:        string(c.ID),
		Customer:  c.Customer,
		Value:     c.Value.Value,
		StartDate: c.StartDate.String(),
	}
	if c.EndDate != nil {
		cj.EndDate = c.EndDate.String()
	}
	for _, cand := range doc.Candidates {
		oj := ObligationJSON{
			Description:            cand.Description,
			StandaloneSellingPrice: cand.StandaloneSellingPrice.Value,
			SatisfactionMethod:     string(cand.SatisfactionMethod),
		}
		if cand.StartDate != nil {
			oj.StartDate = cand.StartDate.String()
		}
		if cand.EndDate != nil {
			oj.EndDate = cand.EndDate.String()
		}
		cj.Obligations = append(cj.Obligations, oj)
	}
	for _, el := range doc.Considerations {
		cj.Consideration = append(cj.Consideration, ConsiderationJSON{
			Type:             string(el.Type),
			Amount:           el.Amount.Value,
			ConstraintFactor: el.ConstraintFactor,
			Rationale:        el.Rationale,
		})
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseObligation(i int, oj ObligationJSON) (revenue.ObligationCandidate, error) {
	if oj.StandaloneSellingPrice.IsNegative() {
		return revenue.ObligationCandidate{}, invalid("obligations[%d]: standalone_selling_price %s is negative", i, oj.StandaloneSellingPrice)
	}
	method := revenue.OverTime
	if oj.SatisfactionMethod != "" {
		m, err := revenue.ParseSatisfactionMethod(oj.SatisfactionMethod)
		if err != nil {
			return revenue.ObligationCandidate{}, invalid("obligations[%d]: %v", i, err)
		}
		method = m
	}
	start, err := parseOptionalDate(fmt.Sprintf("obligations[%d].start_date", i), oj.StartDate)
	if err != nil {
		return revenue.ObligationCandidate{}, err
	}
	end, err := parseOptionalDate(fmt.Sprintf("obligations[%d].end_date", i), oj.EndDate)
	if err != nil {
		return revenue.ObligationCandidate{}, err
	}
	return revenue.ObligationCandidate{
		Description:            oj.Description,
		StandaloneSellingPrice: generic.AmountOf(oj.StandaloneSellingPrice),
		SatisfactionMethod:     method,
		StartDate:              start,
		EndDate:                end,
	}, nil
}

// ParseConsideration validates a single variable consideration element.
func ParseConsideration(vj ConsiderationJSON) (revenue.VariableConsiderationElement, error) {
	t, err := revenue.ParseConsiderationType(vj.Type)
	if err != nil {
		return revenue.VariableConsiderationElement{}, invalid("%v", err)
	}
	if f := vj.ConstraintFactor; f != nil && (f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1))) {
		return revenue.VariableConsiderationElement{}, invalid("constraint_factor %s outside [0,1]", f)
	}
	return revenue.VariableConsiderationElement{
		Type:             t,
		Amount:           generic.AmountOf(vj.Amount),
		ConstraintFactor: vj.ConstraintFactor,
		Rationale:        vj.Rationale,
	}, nil
}

func parseRequiredDate(field, s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, invalid("%s is required", field)
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, invalid("%s: %v", field, err)
	}
	return tp, nil
}

func parseOptionalDate(field, s string) (*generic.TimePoint, error) {
	if s == "" {
		return nil, nil
	}
	tp, err := parseRequiredDate(field, s)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}
