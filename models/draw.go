package models

import (
	"strconv"
	"strings"
	"time"
)

// DrawRecord is one stored draw of a house. Optional fields are nil when the
// provider did not publish a usable value.
type DrawRecord struct {
	ID        int64      `db:"id"`
	Place     int        `db:"place"`
	Date      *time.Time `db:"date"`
	Hour      *string    `db:"hour"`
	Milhar    *string    `db:"milhar"`
	Group     *int       `db:"group"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// NormalizeDraw validates a raw provider entry. It reports false when the
// entry has no usable place and must be skipped.
func NormalizeDraw(raw RawDraw, now time.Time) (*DrawRecord, bool) {
	place, ok := parseInt(raw.Place)
	if !ok {
		return nil, false
	}

	record := &DrawRecord{
		Place:     place,
		Date:      ParseDrawDate(raw.Date),
		Hour:      trimmed(raw.Hour),
		Milhar:    trimmed(raw.Milhar),
		UpdatedAt: now.UTC(),
	}

	if group, ok := parseInt(raw.Group); ok {
		record.Group = &group
	} else if record.Milhar != nil {
		record.Group = DeriveGroup(*record.Milhar)
	}

	return record, true
}

// ParseDrawDate converts a D/M/YYYY provider date into a UTC day.
// Any other shape yields nil.
func ParseDrawDate(value *string) *time.Time {
	if value == nil {
		return nil
	}

	parts := strings.Split(strings.TrimSpace(*value), "/")
	if len(parts) != 3 {
		return nil
	}

	day, errDay := strconv.Atoi(parts[0])
	month, errMonth := strconv.Atoi(parts[1])
	year, errYear := strconv.Atoi(parts[2])
	if errDay != nil || errMonth != nil || errYear != nil {
		return nil
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises 31/02 into March; reject instead of guessing
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return nil
	}

	return &date
}

// DeriveGroup maps a milhar to its bicho group using the last two digits:
// 01-04 is group 1, 05-08 group 2, ... and 00 closes group 25.
func DeriveGroup(milhar string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(milhar))
	if err != nil || n < 0 {
		return nil
	}

	dezena := n % 100
	group := 25
	if dezena != 0 {
		group = (dezena + 3) / 4
	}
	return &group
}

func parseInt(value *string) (int, bool) {
	if value == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(*value))
	if err != nil {
		return 0, false
	}
	return n, true
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(*value)
	if s == "" {
		return nil
	}
	return &s
}
