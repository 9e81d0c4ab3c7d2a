// Package numbering allocates document numbers of the form CODE-NNNN/YYYY.
// Sequences live in proposal_counters and are advanced by the
// next_proposal_number SQL function, one counter per code and year.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/constructa/propostas/internal/platform/db"
	"github.com/constructa/propostas/internal/platform/httpx"
)

// QuoteCode prefixes quote numbers; proposals use the salesperson code.
const QuoteCode = "ORC"

var ErrMalformed = fmt.Errorf("%w: malformed document number", httpx.ErrValidation)

// Next allocates the next number for code in year. Run it inside the
// transaction that stores the document so a rollback also discards the
// allocation.
func Next(ctx context.Context, q db.DBTX, code string, year int) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: numbering code is empty", httpx.ErrValidation)
	}
	var number string
	if err := q.QueryRow(ctx, `SELECT next_proposal_number($1, $2)`, code, year).Scan(&number); err != nil {
		return "", fmt.Errorf("next number for %s/%d: %w", code, year, err)
	}
	return number, nil
}

// Format renders a number exactly like next_proposal_number.
func Format(code string, seq, year int) string {
	s := strconv.Itoa(seq)
	if seq <= 9999 {
		s = fmt.Sprintf("%04d", seq)
	}
	return strings.ToUpper(code) + "-" + s + "/" + strconv.Itoa(year)
}

// Parse splits a number into its parts.
func Parse(number string) (code string, seq, year int, err error) {
	dash := strings.LastIndex(number, "-")
	slash := strings.LastIndex(number, "/")
	if dash <= 0 || slash < dash+2 || slash == len(number)-1 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	code = number[:dash]
	if seq, err = strconv.Atoi(number[dash+1 : slash]); err != nil || seq <= 0 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	if year, err = strconv.Atoi(number[slash+1:]); err != nil || year < 1000 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	return code, seq, year, nil
}

// Filename turns a number into a storage-safe file name: "JS-0042-2026".
func Filename(number string) string {
	return strings.NewReplacer("/", "-", " ", "_", "\\", "-").Replace(number)
}
