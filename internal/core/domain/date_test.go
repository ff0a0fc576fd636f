package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSON(t *testing.T) {
	d := NewDate(time.Date(2025, 11, 20, 17, 45, 0, 0, time.UTC))

	raw, err := json.Marshal(struct {
		Due  Date `json:"due"`
		Paid Date `json:"paid"`
	}{Due: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2025-11-20","paid":null}`, string(raw))

	tests := map[string]string{
		`"2025-11-20"`:           "2025-11-20",
		`"2025-11-20T23:10:00Z"`: "2025-11-20",
		`""`:                     "",
		`null`:                   "",
	}
	for in, want := range tests {
		var got Date
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got.String(), in)
	}

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`"20/11/2025"`), &bad))
}

func TestDate_DaysUntil(t *testing.T) {
	from, err := ParseDate("2025-01-01")
	require.NoError(t, err)
	to, err := ParseDate("2025-01-31")
	require.NoError(t, err)

	assert.Equal(t, 30, from.DaysUntil(to))
	assert.Equal(t, -30, to.DaysUntil(from))
}

func TestPage_Empty(t *testing.T) {
	p := EmptyPage[OneTimeFee](2, 5)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"meta":{"page":2,"size":5,"total":0,"total_pages":0,"has_next":false,"has_prev":false}}`, string(raw))
}
