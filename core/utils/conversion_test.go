package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"int", 1987, 1987, false},
		{"float whole", float64(1987), 1987, false},
		{"float fraction", 1987.5, 0, true},
		{"string", "1987", 1987, false},
		{"string float", "1987.0", 1987, false},
		{"bytes", []byte("12"), 12, false},
		{"garbage", "abc", 0, true},
		{"unsupported", struct{}{}, 0, true},
		{"uint64 max int64", uint64(math.MaxInt64), math.MaxInt64, false},
		{"uint64 overflow", uint64(math.MaxInt64) + 1, 0, true},
		{"uint overflow", ^uint(0), 0, true},
		{"float too large", 1e19, 0, true},
		{"float too small", -1e19, 0, true},
		{"float min int64", float64(math.MinInt64), math.MinInt64, false},
		{"float inf", math.Inf(1), 0, true},
		{"float nan", math.NaN(), 0, true},
		{"string overflow", "1e30", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFloat(t *testing.T) {
	f, err := ParseFloat("32,5")
	assert.NoError(t, err)
	assert.Equal(t, 32.5, f)

	f, err = ParseFloat(int64(30))
	assert.NoError(t, err)
	assert.Equal(t, 30.0, f)

	_, err = ParseFloat("n/a")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)

	for _, in := range []any{
		"2024-05-17",
		"2024-05-17T13:45:00Z",
		"2024-05-17 13:45:00",
		time.Date(2024, 5, 17, 22, 10, 0, 0, time.UTC),
		[]byte("2024-05-17"),
	} {
		got, err := ParseDate(in)
		assert.NoError(t, err, "input %v", in)
		assert.True(t, want.Equal(got), "input %v gave %v", in, got)
	}

	_, err := ParseDate("17.05.2024")
	assert.Error(t, err)
}

func TestToString(t *testing.T) {
	assert.Equal(t, "12", ToString(float64(12)))
	assert.Equal(t, "12.5", ToString(12.5))
	assert.Equal(t, "abc", ToString([]byte("abc")))
	assert.Equal(t, "7", ToString(7))
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(1))
	assert.True(t, ToBool("true"))
	assert.False(t, ToBool("no"))
	assert.False(t, ToBool(nil))
}
