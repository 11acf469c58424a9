package database

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"bicho/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength bounds a normalised house identifier
const MaxIdentifierLength = 64

// GroupTablePrefix is prepended to a house identifier to name its group table
const GroupTablePrefix = "group_"

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	separatorPattern  = regexp.MustCompile(`[-\s]`)

	reservedIdentifiers = map[string]struct{}{
		"houses":            {},
		"ingest_runs":       {},
		"schema_migrations": {},
	}
)

// ResolveTables derives the draw and group table identifiers for a house.
// Names that cannot be made into a safe identifier are rejected.
func ResolveTables(house string) (models.HouseTables, error) {
	name := strings.TrimSpace(house)
	if name == "" {
		return models.HouseTables{}, &models.ValidationError{Field: "house", Message: "house name is required"}
	}

	folded, err := foldDiacritics(name)
	if err != nil {
		return models.HouseTables{}, &models.ValidationError{Field: "house", Message: fmt.Sprintf("cannot normalise %q", house)}
	}
	identifier := separatorPattern.ReplaceAllString(folded, "_")

	if !identifierPattern.MatchString(identifier) {
		return models.HouseTables{}, &models.ValidationError{Field: "house", Message: fmt.Sprintf("%q contains characters not allowed in a table name", house)}
	}
	if len(identifier) > MaxIdentifierLength {
		return models.HouseTables{}, &models.ValidationError{Field: "house", Message: fmt.Sprintf("%q is longer than %d characters", house, MaxIdentifierLength)}
	}

	lower := strings.ToLower(identifier)
	if _, reserved := reservedIdentifiers[lower]; reserved || strings.HasPrefix(lower, "sqlite_") {
		return models.HouseTables{}, &models.ValidationError{Field: "house", Message: fmt.Sprintf("%q is a reserved name", house)}
	}
	// a house named group_x would share its draw table with x's group table
	if strings.HasPrefix(lower, GroupTablePrefix) {
		return models.HouseTables{}, &models.ValidationError{Field: "house", Message: fmt.Sprintf("%q may not start with %q", house, GroupTablePrefix)}
	}

	return models.HouseTables{
		House:      name,
		DrawTable:  identifier,
		GroupTable: GroupTablePrefix + identifier,
	}, nil
}

// QuoteIdent double-quotes an identifier produced by ResolveTables. It panics
// on anything outside the allow-list, since only resolved names may reach SQL text.
func QuoteIdent(identifier string) string {
	if !identifierPattern.MatchString(identifier) {
		panic(fmt.Sprintf("unsafe SQL identifier %q", identifier))
	}
	return `"` + identifier + `"`
}

func foldDiacritics(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	return out, err
}
