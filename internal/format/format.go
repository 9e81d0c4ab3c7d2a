// Package format renders values for Brazilian Portuguese documents and emails.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	printer = message.NewPrinter(language.BrazilianPortuguese)
	folder  = cases.Fold()
	// São Paulo has no DST since 2019; a fixed zone avoids depending on tzdata.
	saoPaulo = time.FixedZone("BRT", -3*60*60)
)

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// BRL formats v as Brazilian reais, e.g. "R$ 1.234,56".
func BRL(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	f, _ := d.Float64()
	return sign + printer.Sprintf("R$ %.2f", f)
}

// Number formats v with the given fraction digits and pt-BR separators.
func Number(v float64, places int) string {
	f, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return printer.Sprintf("%."+strconv.Itoa(places)+"f", f)
}

// Percent formats a percentage value, trimming a zero fraction: "10%", "7,5%".
func Percent(v float64) string {
	s := Number(v, 2)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ",")
	return s + "%"
}

// Local converts t to Brasília time.
func Local(t time.Time) time.Time {
	return t.In(saoPaulo)
}

// Date formats t as dd/mm/yyyy in Brasília time.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return Local(t).Format("02/01/2006")
}

// DateTime formats t as dd/mm/yyyy hh:mm in Brasília time.
func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return Local(t).Format("02/01/2006 15:04")
}

// LongDate formats t as "19 de outubro de 2026".
func LongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return longDay(Local(t))
}

// Day formats a calendar date (a DATE column, no time of day) as dd/mm/yyyy.
// Unlike Date it does not shift the value into Brasília time.
func Day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// LongDay is the long form of Day.
func LongDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return longDay(t)
}

func longDay(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), months[t.Month()-1], t.Year())
}

// Fold lowercases s and strips diacritics so "São Paulo" matches "SAO PAULO".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(folder.String(out)), " ")
}
