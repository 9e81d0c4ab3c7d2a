package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBRL(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "R$ 0,00"},
		{1234.5, "R$ 1.234,50"},
		{1234567.891, "R$ 1.234.567,89"},
		{0.005, "R$ 0,01"},
		{-15.2, "-R$ 15,20"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BRL(tt.in), "BRL(%v)", tt.in)
	}
}

func TestNumberAndPercent(t *testing.T) {
	assert.Equal(t, "12.500,250", Number(12500.25, 3))
	assert.Equal(t, "10%", Percent(10))
	assert.Equal(t, "7,5%", Percent(7.5))
	assert.Equal(t, "0%", Percent(0))
}

func TestDates(t *testing.T) {
	ts := time.Date(2026, time.October, 19, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "19/10/2026", Date(ts))
	assert.Equal(t, "19/10/2026 12:30", DateTime(ts))
	assert.Equal(t, "19 de outubro de 2026", LongDate(ts))
	assert.Equal(t, "", Date(time.Time{}))

	// 01:00 UTC is still the previous day in Brasília.
	assert.Equal(t, "31 de março de 2026", LongDate(time.Date(2026, time.April, 1, 1, 0, 0, 0, time.UTC)))

	// Calendar dates come back from Postgres as UTC midnight and must not shift.
	day := time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "03/11/2026", Day(day))
	assert.Equal(t, "3 de novembro de 2026", LongDay(day))
	assert.Equal(t, "02/11/2026", Date(day))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "sao paulo", Fold("  São   Paulo "))
	assert.Equal(t, Fold("JOÃO PESSOA"), Fold("joao pessoa"))
	assert.Equal(t, "florianopolis", Fold("Florianópolis"))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 2.68, Round2(2.675))
	assert.Equal(t, 10.0, Round2(9.999))
}
