package factory

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/revenue"
)

const sampleDocument = `{
  "id": "c-100",
  "customer": "Acme",
  "value": "1200.00",
  "start_date": "2024-01-15",
  "end_date": "2024-04-15",
  "obligations": [
    {"description": "Platform subscription", "standalone_selling_price": "1000.00"},
    {
      "description": "Onboarding",
      "standalone_selling_price": 200,
      "satisfaction_method": "point_in_time",
      "start_date": "2024-01-20"
    }
  ],
  "variable_consideration": [
    {"type": "bonus", "amount": "300.00", "constraint_factor": "0.5"},
    {"type": "penalty", "amount": "50.00", "rationale": "SLA breach"}
  ]
}`

func TestParseContract(t *testing.T) {
	// GIVEN: A complete contract document
	f := NewContractFactory()

	// WHEN: Parsing it
	doc, err := f.ParseContract([]byte(sampleDocument))

	// THEN: Header, candidates and consideration are converted
	require.NoError(t, err)
	c := doc.Contract
	assert.Equal(t, revenue.ContractID("c-100"), c.ID)
	assert.Equal(t, "Acme", c.Customer)
	assert.Equal(t, "1200.00", c.Value.String())
	assert.Equal(t, "2024-01-15", c.StartDate.String())
	require.NotNil(t, c.EndDate)
	assert.Equal(t, "2024-04-15", c.EndDate.String())
	assert.Nil(t, c.TransactionPrice)

	require.Len(t, doc.Candidates, 2)
	assert.Equal(t, revenue.OverTime, doc.Candidates[0].SatisfactionMethod, "defaults to over time")
	assert.Nil(t, doc.Candidates[0].StartDate)
	assert.Equal(t, revenue.PointInTime, doc.Candidates[1].SatisfactionMethod)
	assert.Equal(t, "200.00", doc.Candidates[1].StandaloneSellingPrice.String(), "JSON number accepted")
	require.NotNil(t, doc.Candidates[1].StartDate)
	assert.Equal(t, "2024-01-20", doc.Candidates[1].StartDate.String())

	require.Len(t, doc.Considerations, 2)
	assert.Equal(t, revenue.Bonus, doc.Considerations[0].Type)
	require.NotNil(t, doc.Considerations[0].ConstraintFactor)
	assert.Equal(t, "0.5", doc.Considerations[0].ConstraintFactor.String())
	assert.Equal(t, "SLA breach", doc.Considerations[1].Rationale)

	// AND: The resolver accepts what the factory produced
	res, err := revenue.ResolvePrice(c.Value, doc.Considerations)
	require.NoError(t, err)
	assert.Equal(t, "1300.00", res.Price.String())
}

func TestParseContract_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"malformed json", `{"id":`, "invalid contract document"},
		{"missing id", `{"value":"1","start_date":"2024-01-01"}`, "id is required"},
		{"blank id", `{"id":"  ","value":"1","start_date":"2024-01-01"}`, "id is required"},
		{"negative value", `{"id":"c","value":"-1","start_date":"2024-01-01"}`, "value -1 is negative"},
		{"missing start", `{"id":"c","value":"1"}`, "start_date is required"},
		{"bad start", `{"id":"c","value":"1","start_date":"01/02/2024"}`, "start_date"},
		{"bad end", `{"id":"c","value":"1","start_date":"2024-01-01","end_date":"soon"}`, "end_date"},
		{
			"negative ssp",
			`{"id":"c","value":"1","start_date":"2024-01-01","obligations":[{"description":"x","standalone_selling_price":"-2"}]}`,
			"obligations[0]: standalone_selling_price -2 is negative",
		},
		{
			"unknown method",
			`{"id":"c","value":"1","start_date":"2024-01-01","obligations":[{"description":"x","standalone_selling_price":"2","satisfaction_method":"daily"}]}`,
			"unknown satisfaction method",
		},
		{
			"unknown consideration type",
			`{"id":"c","value":"1","start_date":"2024-01-01","variable_consideration":[{"type":"tip","amount":"1"}]}`,
			"variable_consideration[0]",
		},
		{
			"factor above one",
			`{"id":"c","value":"1","start_date":"2024-01-01","variable_consideration":[{"type":"bonus","amount":"1","constraint_factor":"1.5"}]}`,
			"outside [0,1]",
		},
	}

	f := NewContractFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseContract([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDocument)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseObligations(t *testing.T) {
	f := NewContractFactory()

	candidates, err := f.ParseObligations([]ObligationJSON{
		{Description: "A", StandaloneSellingPrice: decimal.NewFromInt(10)},
		{Description: "B", StandaloneSellingPrice: decimal.NewFromInt(5), SatisfactionMethod: "point_in_time"},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, revenue.PointInTime, candidates[1].SatisfactionMethod)

	empty, err := f.ParseObligations(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.ParseObligations([]ObligationJSON{{Description: "A", StandaloneSellingPrice: decimal.NewFromInt(-1)}})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewContractFactory()
	doc, err := f.ParseContract([]byte(sampleDocument))
	require.NoError(t, err)

	data, err := json.Marshal(f.ToJSON(doc))
	require.NoError(t, err)

	again, err := f.ParseContract(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Contract.ID, again.Contract.ID)
	assert.Equal(t, doc.Contract.EndDate.String(), again.Contract.EndDate.String())
	require.Len(t, again.Candidates, 2)
	assert.Equal(t, "Onboarding", again.Candidates[1].Description)
	assert.Equal(t, "2024-01-20", again.Candidates[1].StartDate.String())
	require.Len(t, again.Considerations, 2)
	assert.Equal(t, "0.5", again.Considerations[0].ConstraintFactor.String())
}

func TestParseConsideration(t *testing.T) {
	zero := decimal.Zero
	el, err := ParseConsideration(ConsiderationJSON{Type: "refund", Amount: decimal.NewFromInt(7), ConstraintFactor: &zero})
	require.NoError(t, err)
	assert.Equal(t, revenue.Refund, el.Type)
	assert.True(t, el.ConstraintFactor.IsZero())

	negative := decimal.NewFromInt(-1)
	_, err = ParseConsideration(ConsiderationJSON{Type: "bonus", ConstraintFactor: &negative})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
