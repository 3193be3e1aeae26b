package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newsarchive/kinderr"
)

// wellKnownEarliest is the bundled static dataset of earliest-issue dates
// for publications commonly referenced in tests and demos. A production
// deployment would ship a larger generated table; this is deliberately
// small and hand-curated.
var wellKnownEarliest = map[string]string{
	"sn83045604": "1888-05-11", // The San Francisco call
	"sn84026749": "1890-01-01",
}

const cacheBucket = "earliest_issue_date"

// earliestResolver implements the cache -> static dataset -> JSON
// endpoint -> HTML scrape strategy chain from the acquisition design.
// Each strategy is a small pure-ish function so it is independently
// testable; Resolve stops at the first strategy that succeeds.
type earliestResolver struct {
	cache   *Cache
	http    *httpClient
	baseURL string
}

func newEarliestResolver(cache *Cache, http *httpClient, baseURL string) *earliestResolver {
	return &earliestResolver{cache: cache, http: http, baseURL: baseURL}
}

// Resolve returns the earliest known issue date for lccn, trying each
// strategy in order and caching the first successful result.
func (r *earliestResolver) Resolve(ctx context.Context, lccn string) (time.Time, error) {
	if t, ok := r.fromCache(lccn); ok {
		return t, nil
	}
	if t, ok := r.fromStaticDataset(lccn); ok {
		r.store(lccn, t)
		return t, nil
	}
	if t, ok, err := r.fromJSONEndpoint(ctx, lccn); err != nil {
		return time.Time{}, err
	} else if ok {
		r.store(lccn, t)
		return t, nil
	}
	if t, ok, err := r.fromHTMLScrape(ctx, lccn); err != nil {
		return time.Time{}, err
	} else if ok {
		r.store(lccn, t)
		return t, nil
	}
	return time.Time{}, kinderr.New(kinderr.NotFound, "earliest issue date could not be resolved").
		WithDetail("lccn", lccn)
}

func (r *earliestResolver) fromCache(lccn string) (time.Time, bool) {
	if r.cache == nil {
		return time.Time{}, false
	}
	var stored string
	if err := r.cache.Get(cacheBucket, lccn, &stored); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", stored)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r *earliestResolver) store(lccn string, t time.Time) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Put(cacheBucket, lccn, t.Format("2006-01-02"))
}

func (r *earliestResolver) fromStaticDataset(lccn string) (time.Time, bool) {
	raw, ok := wellKnownEarliest[lccn]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// issueJSON mirrors the small subset of /lccn/<lccn>/issues.json this
// client needs.
type issueJSON struct {
	Issues []struct {
		Date string `json:"date_issued"`
	} `json:"issues"`
}

func (r *earliestResolver) fromJSONEndpoint(ctx context.Context, lccn string) (time.Time, bool, error) {
	url := fmt.Sprintf("%s/lccn/%s/issues.json", r.baseURL, lccn)
	body, err := r.http.get(ctx, url)
	if err != nil {
		if kinderr.KindOf(err) == kinderr.NotFound || kinderr.KindOf(err) == kinderr.PermanentUpstream {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	var parsed issueJSON
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Issues) == 0 {
		return time.Time{}, false, nil
	}

	earliest := parsed.Issues[0].Date
	for _, issue := range parsed.Issues[1:] {
		if issue.Date < earliest {
			earliest = issue.Date
		}
	}
	t, err := time.Parse("2006-01-02", earliest)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// fromHTMLScrape is the last-resort strategy: scrape the publication's
// issue-listing page for the earliest dated link. It is intentionally
// tolerant of parse failures, returning (zero, false, nil) rather than
// an error, since this is the final fallback in the chain.
func (r *earliestResolver) fromHTMLScrape(ctx context.Context, lccn string) (time.Time, bool, error) {
	url := fmt.Sprintf("%s/lccn/%s/issues/", r.baseURL, lccn)
	body, err := r.http.get(ctx, url)
	if err != nil {
		if kinderr.KindOf(err) == kinderr.NotFound || kinderr.KindOf(err) == kinderr.PermanentUpstream {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	dates := extractDatesFromHTML(string(body))
	if len(dates) == 0 {
		return time.Time{}, false, nil
	}
	earliest := dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return earliest, true, nil
}

// extractDatesFromHTML pulls every yyyy-mm-dd-looking substring out of a
// scraped page. The upstream HTML is not a stable target to parse
// strictly, so this favors tolerance over precision.
func extractDatesFromHTML(html string) []time.Time {
	var out []time.Time
	for _, token := range strings.FieldsFunc(html, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '-'
	}) {
		if len(token) != 10 {
			continue
		}
		if t, err := time.Parse("2006-01-02", token); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// AdjustDateStart applies the date-range pruning rule: date_start is
// pulled forward to the publication's earliest known issue date, with
// the adjustment surfaced to the caller.
func (r *earliestResolver) AdjustDateStart(ctx context.Context, lccn string, dateStart time.Time) (time.Time, *DateAdjustment, error) {
	if lccn == "" {
		return dateStart, nil, nil
	}
	earliest, err := r.Resolve(ctx, lccn)
	if err != nil {
		return dateStart, nil, err
	}
	if earliest.After(dateStart) {
		return earliest, &DateAdjustment{Original: dateStart, Adjusted: earliest}, nil
	}
	return dateStart, nil, nil
}
