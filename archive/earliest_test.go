package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromStaticDatasetKnownLCCN(t *testing.T) {
	r := &earliestResolver{}
	got, ok := r.fromStaticDataset("sn83045604")
	assert.True(t, ok)
	assert.Equal(t, time.Date(1888, 5, 11, 0, 0, 0, 0, time.UTC), got)
}

func TestFromStaticDatasetUnknownLCCN(t *testing.T) {
	r := &earliestResolver{}
	_, ok := r.fromStaticDataset("sn99999999")
	assert.False(t, ok)
}

func TestExtractDatesFromHTML(t *testing.T) {
	html := `<a href="/lccn/sn83045604/1888-05-11/ed-1/">May 11, 1888</a>
	          <a href="/lccn/sn83045604/1890-02-20/ed-1/">Feb 20, 1890</a>
	          <span>not-a-date-12345</span>`

	got := extractDatesFromHTML(html)

	assert.ElementsMatch(t, []time.Time{
		time.Date(1888, 5, 11, 0, 0, 0, 0, time.UTC),
		time.Date(1890, 2, 20, 0, 0, 0, 0, time.UTC),
	}, got)
}

func TestExtractDatesFromHTMLNoMatches(t *testing.T) {
	got := extractDatesFromHTML("<html><body>nothing here</body></html>")
	assert.Empty(t, got)
}
