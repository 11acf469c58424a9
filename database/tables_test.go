package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"bicho/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTables(t *testing.T) {
	tests := []struct {
		house string
		draw  string
	}{
		{"Look Goiás", "Look_Goias"},
		{"PT-Rio", "PT_Rio"},
		{"  Federal  ", "Federal"},
		{"Bahia  Maluca", "Bahia__Maluca"},
		{"Paraíba São João", "Paraiba_Sao_Joao"},
		{"nacional_23", "nacional_23"},
	}

	for _, tt := range tests {
		t.Run(tt.house, func(t *testing.T) {
			tables, err := ResolveTables(tt.house)
			require.NoError(t, err)
			assert.Equal(t, tt.draw, tables.DrawTable)
			assert.Equal(t, "group_"+tt.draw, tables.GroupTable)
		})
	}
}

func TestResolveTables_IsDeterministic(t *testing.T) {
	first, err := ResolveTables("Look Goiás")
	require.NoError(t, err)
	second, err := ResolveTables("Look Goiás")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveTables_Rejects(t *testing.T) {
	rejected := []string{
		"",
		"   ",
		`evil"; DROP TABLE houses; --`,
		"a;b",
		"quote'name",
		"houses",
		"Ingest_Runs",
		"schema_migrations",
		"sqlite_master",
		"group_federal",
		"Group Federal",
		"emoji🎲",
		strings.Repeat("a", MaxIdentifierLength+1),
	}

	for _, house := range rejected {
		t.Run(fmt.Sprintf("%.20q", house), func(t *testing.T) {
			_, err := ResolveTables(house)
			var validationErr *models.ValidationError
			require.True(t, errors.As(err, &validationErr), "expected validation error for %q, got %v", house, err)
			assert.Equal(t, "house", validationErr.Field)
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Look_Goias"`, QuoteIdent("Look_Goias"))
	assert.Panics(t, func() { QuoteIdent(`bad"name`) })
	assert.Panics(t, func() { QuoteIdent("") })
}
