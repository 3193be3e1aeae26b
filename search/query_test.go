package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryPlainTerms(t *testing.T) {
	q := ParseQuery("fire downtown")
	assert.Equal(t, "fire downtown", q.Raw)
	assert.Empty(t, q.PublicationID)
	assert.Nil(t, q.DateStart)
}

func TestParseQueryPublicationPrefix(t *testing.T) {
	q := ParseQuery("pub:sn12345678 flood")
	assert.Equal(t, "sn12345678", q.PublicationID)
	assert.Equal(t, "flood", q.Raw)
}

func TestParseQueryDateRangePrefix(t *testing.T) {
	q := ParseQuery("date:1900-01-01..1910-12-31 election")
	require.NotNil(t, q.DateStart)
	require.NotNil(t, q.DateEnd)
	assert.Equal(t, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), *q.DateStart)
	assert.Equal(t, time.Date(1910, 12, 31, 0, 0, 0, 0, time.UTC), *q.DateEnd)
	assert.Equal(t, "election", q.Raw)
}

func TestParseQueryMalformedDateRangeIgnored(t *testing.T) {
	q := ParseQuery("date:not-a-range election")
	assert.Nil(t, q.DateStart)
	assert.Nil(t, q.DateEnd)
	assert.Equal(t, "election", q.Raw)
}

func TestParseQueryQuotedPhraseKeptTogether(t *testing.T) {
	q := ParseQuery(`"city council" meeting`)
	assert.Equal(t, `"city council" meeting`, q.Raw)
}

func TestSplitRespectingQuotes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"no quotes", "fire downtown", []string{"fire", "downtown"}},
		{"quoted phrase", `"city council" vote`, []string{`"city council"`, "vote"}},
		{"extra whitespace collapsed", "  a   b  ", []string{"a", "b"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitRespectingQuotes(tt.in))
		})
	}
}

func TestToTSQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quoted phrase becomes a followed-by chain", `"city council"`, "city<->council"},
		{"terms AND-joined by default", "fire downtown warehouse", "fire & downtown & warehouse"},
		{"single term", "flood", "flood"},
		{"explicit AND token", "fire AND downtown", "fire & downtown"},
		{"OR token switches combinator", "cat OR dog", "cat | dog"},
		{"OR only affects the following pair", "cat OR dog fox", "cat | dog & fox"},
		{"phrase combined with OR", `"city council" OR mayor`, "city<->council | mayor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toTSQuery(tt.in))
		})
	}
}
