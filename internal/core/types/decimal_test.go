package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"12", 120_000},
		{" 12.5 ", 125_000},
		{"+3", 30_000},
		{"-0.0001", -1},
		{"0.5", 5_000},
		{".5", 5_000},
		{"12.34567", 123_456},
		{"1.5e2", 1_500_000},
		{"25E-1", 25_000},
		{"922337203685477.5807", Quantity(math.MaxInt64)},
		{"-922337203685477.5807", Quantity(-math.MaxInt64)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuantity_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"abc",
		"--3",
		"+-3",
		"1.-5",
		"1.+5",
		"1..5",
		"1 2",
		"0x10",
		"1.",
		"e5",
		"1e",
		"1e1000",
		"1844674407370956",
		"922337203685477.5808",
		"-922337203685477.5808",
		"1e30",
		"-1e15",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseQuantity(in)
			assert.Error(t, err)
		})
	}
}

func TestQuantity_UnmarshalJSON(t *testing.T) {
	type body struct {
		Quantity Quantity `json:"quantity"`
	}
	tests := []struct {
		name    string
		raw     string
		want    Quantity
		wantErr bool
	}{
		{"number", `{"quantity": 2}`, NewQuantity(2), false},
		{"fractional number", `{"quantity": 0.25}`, 2_500, false},
		{"string", `{"quantity": "7.5"}`, 75_000, false},
		{"null", `{"quantity": null}`, 0, false},
		{"wrapping number", `{"quantity": 1844674407370956}`, 0, true},
		{"exponent overflow", `{"quantity": 1e30}`, 0, true},
		{"garbage string", `{"quantity": "1.-5"}`, 0, true},
		{"boolean", `{"quantity": true}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			err := json.Unmarshal([]byte(tt.raw), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Quantity)
		})
	}
}

func TestQuantity_StringAndMarshalRoundTrip(t *testing.T) {
	for _, q := range []Quantity{0, 1, -1, NewQuantity(8), -120_500, Quantity(math.MaxInt64)} {
		s := q.String()
		parsed, err := ParseQuantity(s)
		require.NoError(t, err, s)
		assert.Equal(t, q, parsed)

		data, err := json.Marshal(q)
		require.NoError(t, err)
		var back Quantity
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, q, back)
	}

	assert.Equal(t, "-12.0500", Quantity(-120_500).String())
	assert.Equal(t, "0.0001", Quantity(1).String())
}

func TestQuantity_Add(t *testing.T) {
	sum, ok := NewQuantity(2).Add(NewQuantity(3))
	require.True(t, ok)
	assert.Equal(t, NewQuantity(5), sum)

	_, ok = Quantity(math.MaxInt64).Add(1)
	assert.False(t, ok)

	_, ok = Quantity(-math.MaxInt64).Add(-2)
	assert.False(t, ok)
}

func TestQuantity_Decimal(t *testing.T) {
	assert.True(t, MustMoney("12.3456").Equal(Quantity(123_456).Decimal()))
}
