package models

import (
	"strconv"
	"strings"
	"time"
)

const (
	// MinGroupNumber and MaxGroupNumber bound the 2-digit values a group may track
	MinGroupNumber = 0
	MaxGroupNumber = 99
)

// Group is a user-defined set of numbers tracked for one hour and place
type Group struct {
	ID        *int64    `json:"id" db:"id"`
	Hour      string    `json:"hour" db:"hour"`
	Place     int       `json:"place" db:"place"`
	Numbers   []int     `json:"group" db:"group"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// stored is the column text as last read or written
	stored string
}

// StoredText returns the numbers column exactly as persisted. Groups that
// never touched storage fall back to the encoded Numbers.
func (g *Group) StoredText() string {
	if g.stored != "" {
		return g.stored
	}
	return EncodeNumbers(g.Numbers)
}

// SetStoredText records the persisted column text
func (g *Group) SetStoredText(text string) {
	g.stored = text
}

// Validate checks the caller-supplied fields and collapses repeated numbers
func (g *Group) Validate() error {
	g.Hour = strings.TrimSpace(g.Hour)
	if g.Hour == "" {
		return &ValidationError{Field: "hour", Message: "hour is required"}
	}
	if g.Place <= 0 {
		return &ValidationError{Field: "place", Message: "place must be positive"}
	}
	if len(g.Numbers) == 0 {
		return &ValidationError{Field: "group", Message: "at least one number is required"}
	}

	seen := make(map[int]struct{}, len(g.Numbers))
	numbers := make([]int, 0, len(g.Numbers))
	for _, n := range g.Numbers {
		if n < MinGroupNumber || n > MaxGroupNumber {
			return &ValidationError{Field: "group", Message: "numbers must be between 0 and 99, got " + strconv.Itoa(n)}
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	g.Numbers = numbers

	return nil
}

// EncodeNumbers joins numbers into their stored text form
func EncodeNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ParseNumbers reads the stored text form back, dropping tokens that do not parse
func ParseNumbers(encoded string) []int {
	numbers := []int{}
	for _, token := range strings.Split(encoded, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}
