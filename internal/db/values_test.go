package db_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wesm/barview/internal/db"
)

func TestFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{nil, 0},
		{int64(4), 4},
		{12.5, 12.5},
		{"1100.33", 1100.33},
		{[]byte("7.25"), 7.25},
		{" 3 ", 3},
		{"abc", 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{true, 1},
		{time.Now(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, db.Float(tt.in), "Float(%#v)", tt.in)
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{nil, 0},
		{int64(120), 120},
		{2.6, 3},
		{2.4, 2},
		{"7", 7},
		{"7.60", 8},
		{[]byte("120"), 120},
		{[]byte("23.000"), 23},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, db.Int(tt.in), "Int(%#v)", tt.in)
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "", db.Text(nil))
	assert.Equal(t, "CERRADA", db.Text([]byte("CERRADA")))
	assert.Equal(t, "42", db.Text(int64(42)))
	ts := time.Date(2024, 6, 1, 20, 5, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-01 20:05:00", db.Text(ts))
}

func TestBool(t *testing.T) {
	assert.True(t, db.Bool(true))
	assert.True(t, db.Bool(int64(1)))
	assert.True(t, db.Bool([]byte("1")))
	assert.False(t, db.Bool(int64(0)))
	assert.False(t, db.Bool(nil))
	assert.False(t, db.Bool("no"))
}
