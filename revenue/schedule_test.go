package revenue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/generic"
)

func allocated(method SatisfactionMethod, amount string, start, end generic.TimePoint) AllocatedObligation {
	return AllocatedObligation{
		PerformanceObligation: PerformanceObligation{
			ID:                 "ob-1",
			ContractID:         "c-100",
			Description:        "Subscription",
			SatisfactionMethod: method,
			StartDate:          start,
			EndDate:            end,
			Status:             ObligationActive,
		},
		AllocatedAmount: amt(amount),
	}
}

type dated struct{ date, amount string }

func flatten(entries []ScheduleEntry) []dated {
	out := make([]dated, len(entries))
	for i, e := range entries {
		out[i] = dated{e.RecognitionDate.String(), e.Amount.String()}
	}
	return out
}

func TestGenerateSchedule_OverTime(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		start  generic.TimePoint
		end    generic.TimePoint
		want   []dated
	}{
		{
			name:   "mid month start prorates first entry",
			amount: "1200.00",
			start:  date(2024, time.January, 15),
			end:    date(2024, time.April, 15),
			want: []dated{
				{"2024-01-01", "219.35"},
				{"2024-02-01", "400.00"},
				{"2024-03-01", "400.00"},
				{"2024-04-01", "180.65"},
			},
		},
		{
			name:   "month aligned",
			amount: "1000.00",
			start:  date(2024, time.January, 1),
			end:    date(2024, time.April, 1),
			want: []dated{
				{"2024-01-01", "333.33"},
				{"2024-02-01", "333.33"},
				{"2024-03-01", "333.34"},
			},
		},
		{
			name:   "under one month",
			amount: "50.00",
			start:  date(2024, time.June, 1),
			end:    date(2024, time.June, 20),
			want:   []dated{{"2024-06-01", "50.00"}},
		},
		{
			name:   "short span crossing a month boundary",
			amount: "100.00",
			start:  date(2024, time.January, 20),
			end:    date(2024, time.February, 10),
			want: []dated{
				{"2024-01-01", "38.71"},
				{"2024-02-01", "61.29"},
			},
		},
		{
			name:   "zero allocation",
			amount: "0.00",
			start:  date(2024, time.January, 1),
			end:    date(2024, time.March, 1),
			want: []dated{
				{"2024-01-01", "0.00"},
				{"2024-02-01", "0.00"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ob := allocated(OverTime, tt.amount, tt.start, tt.end)
			entries := GenerateSchedule(ob)

			assert.Equal(t, tt.want, flatten(entries))
			assert.True(t, SumEntries(entries).Equal(ob.AllocatedAmount))
			for i, e := range entries {
				assert.Equal(t, i, e.Sequence)
				assert.Equal(t, StatusScheduled, e.Status)
				assert.Equal(t, ob.ID, e.ObligationID)
				assert.Equal(t, ob.ContractID, e.ContractID)
				assert.True(t, e.Amount.IsRounded())
			}
		})
	}
}

func TestGenerateSchedule_NonFinalEntriesCapped(t *testing.T) {
	// GIVEN: 0.03 over two whole months plus a partial third; monthly 0.015
	// rounds up to 0.02, so the second entry would overshoot
	ob := allocated(OverTime, "0.03", date(2024, time.January, 1), date(2024, time.March, 31))

	entries := GenerateSchedule(ob)

	// THEN: The second entry takes only what is left and the last is zero
	assert.Equal(t, []dated{
		{"2024-01-01", "0.02"},
		{"2024-02-01", "0.01"},
		{"2024-03-01", "0.00"},
	}, flatten(entries))
	assert.True(t, SumEntries(entries).Equal(ob.AllocatedAmount))
}

func TestGenerateSchedule_PointInTime(t *testing.T) {
	ob := allocated(PointInTime, "200.00", date(2024, time.January, 20), date(2024, time.April, 15))
	entries := GenerateSchedule(ob)
	assert.Equal(t, []dated{{"2024-01-20", "200.00"}}, flatten(entries))
}

func TestGenerateSchedule_DeterministicIDs(t *testing.T) {
	ob := allocated(OverTime, "1200.00", date(2024, time.January, 15), date(2024, time.April, 15))
	a := GenerateSchedule(ob)
	b := GenerateSchedule(ob)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}

	changed := ob
	changed.AllocatedAmount = amt("1300.00")
	c := GenerateSchedule(changed)
	assert.NotEqual(t, a[0].ID, c[0].ID)
}

func TestGenerateContractSchedule_Ordering(t *testing.T) {
	sub := allocated(OverTime, "300.00", date(2024, time.January, 1), date(2024, time.April, 1))
	setup := allocated(PointInTime, "50.00", date(2024, time.February, 1), date(2024, time.April, 1))
	setup.ID = "ob-2"

	entries := GenerateContractSchedule([]AllocatedObligation{setup, sub})

	require.Len(t, entries, 4)
	assert.Equal(t, "2024-01-01", entries[0].RecognitionDate.String())
	// Same date: input order wins, setup was listed first
	assert.Equal(t, ObligationID("ob-2"), entries[1].ObligationID)
	assert.Equal(t, ObligationID("ob-1"), entries[2].ObligationID)
	assert.Equal(t, "350.00", SumEntries(entries).String())
}

func TestGenerateRemainingSchedule(t *testing.T) {
	jan := date(2024, time.January, 1).String()
	all := map[string]bool{
		jan: true,
		date(2024, time.February, 1).String(): true,
		date(2024, time.March, 1).String():    true,
		date(2024, time.April, 1).String():    true,
	}

	tests := []struct {
		name       string
		allocation string
		recognized string
		dates      map[string]bool
		want       []dated
	}{
		{
			name:       "nothing recognized",
			allocation: "1200.00",
			recognized: "0",
			want:       []dated{{"2024-01-01", "219.35"}, {"2024-02-01", "400.00"}, {"2024-03-01", "400.00"}, {"2024-04-01", "180.65"}},
		},
		{
			name:       "unchanged allocation keeps open months",
			allocation: "1200.00",
			recognized: "219.35",
			dates:      map[string]bool{jan: true},
			want:       []dated{{"2024-02-01", "400.00"}, {"2024-03-01", "400.00"}, {"2024-04-01", "180.65"}},
		},
		{
			name:       "higher allocation spreads the remainder",
			allocation: "1320.00",
			recognized: "219.35",
			dates:      map[string]bool{jan: true},
			want:       []dated{{"2024-02-01", "448.95"}, {"2024-03-01", "448.95"}, {"2024-04-01", "202.75"}},
		},
		{
			name:       "every month recognized",
			allocation: "1320.00",
			recognized: "1200.00",
			dates:      all,
			want:       []dated{{"2024-04-01", "120.00"}},
		},
		{
			name:       "fully recognized",
			allocation: "1200.00",
			recognized: "1200.00",
			dates:      all,
			want:       []dated{},
		},
		{
			name:       "recognized beyond allocation",
			allocation: "500.00",
			recognized: "1019.35",
			dates:      map[string]bool{jan: true},
			want:       []dated{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ob := allocated(OverTime, tt.allocation, date(2024, time.January, 15), date(2024, time.April, 15))
			got := GenerateRemainingSchedule(ob, Recognized{Total: amt(tt.recognized), Dates: tt.dates})
			assert.Equal(t, tt.want, flatten(got))

			if len(got) > 0 {
				total := amt(tt.recognized).Add(SumEntries(got))
				assert.Equal(t, tt.allocation, total.String(), "recognized plus remaining is the allocation")
			}
		})
	}
}

func TestGenerateRemainingSchedule_KeepsIDsWhenUnchanged(t *testing.T) {
	ob := allocated(OverTime, "1200.00", date(2024, time.January, 15), date(2024, time.April, 15))
	full := GenerateSchedule(ob)

	rest := GenerateRemainingSchedule(ob, Recognized{
		Total: full[0].Amount,
		Dates: map[string]bool{full[0].RecognitionDate.String(): true},
	})

	require.Len(t, rest, 3)
	for i, e := range rest {
		assert.Equal(t, full[i+1].ID, e.ID)
	}
}

func TestGenerateRemainingSchedule_CatchUpHasItsOwnID(t *testing.T) {
	ob := allocated(PointInTime, "200.00", date(2024, time.January, 20), date(2024, time.April, 15))
	full := GenerateSchedule(ob)

	rest := GenerateRemainingSchedule(ob, Recognized{
		Total: amt("150.00"),
		Dates: map[string]bool{"2024-01-20": true},
	})

	require.Len(t, rest, 1)
	assert.Equal(t, 1, rest[0].Sequence)
	assert.Equal(t, "50.00", rest[0].Amount.String())
	assert.NotEqual(t, full[0].ID, rest[0].ID)
}
