package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsarchive/config"
	"newsarchive/kinderr"
	"newsarchive/logging"
)

const defaultBaseURL = "https://chroniclingamerica.loc.gov"

// directDateRangeLimit bounds the per-day direct URL construction
// strategy: beyond 730 days it would issue too many requests to be
// worthwhile, so the chain falls through to the keyword fallbacks.
const directDateRangeLimit = 730 * 24 * time.Hour

// Client is the acquisition client against Chronicling America. It never
// writes to the repository store directly; it returns bytes and
// metadata for a caller to hand to repo.Store.
type Client struct {
	http     *httpClient
	earliest *earliestResolver
	baseURL  string
	log      *logging.ContextLogger
}

// New constructs a Client. cache may be nil, in which case earliest-date
// resolution still works but is not persisted across restarts.
func New(cfg config.Downloader, cache *Cache, log *logging.ContextLogger) *Client {
	log = log.WithField("component", "archive.client")
	hc := newHTTPClient(cfg.RateLimit, cfg.RetryAttempts, 60*time.Second, log)
	return &Client{
		http:     hc,
		earliest: newEarliestResolver(cache, hc, defaultBaseURL),
		baseURL:  defaultBaseURL,
		log:      log,
	}
}

// EarliestIssueDate resolves the earliest known issue date for an LCCN.
func (c *Client) EarliestIssueDate(ctx context.Context, lccn string) (time.Time, error) {
	return c.earliest.Resolve(ctx, lccn)
}

// Search runs the ordered strategy chain — advanced search, per-day
// direct construction, year+month keyword, year-only keyword — stopping
// at the first strategy that yields results. When both DateStart and
// PublicationID are set, date_start is first pruned to the publication's
// earliest known issue date.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageIndex <= 0 {
		req.PageIndex = 1
	}

	var adjustment *DateAdjustment
	if req.PublicationID != "" && !req.DateStart.IsZero() {
		adjusted, adj, err := c.earliest.AdjustDateStart(ctx, req.PublicationID, req.DateStart)
		if err != nil {
			return nil, err
		}
		req.DateStart = adjusted
		adjustment = adj
	}

	strategies := []func(context.Context, SearchRequest) ([]PageMetadata, Pagination, error){
		c.searchAdvanced,
		c.searchPerDay,
		c.searchYearMonthKeyword,
		c.searchYearKeyword,
	}

	for _, strategy := range strategies {
		pages, pagination, err := strategy(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(pages) > 0 {
			return &SearchResult{Pages: pages, Pagination: pagination, Adjustment: adjustment}, nil
		}
	}

	return &SearchResult{Pagination: Pagination{CurrentPage: req.PageIndex}, Adjustment: adjustment}, nil
}

type searchResponseJSON struct {
	TotalItems int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
	StartIndex int `json:"startIndex"`
	Items      []struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		State     []string `json:"state"`
		DateIssue string `json:"date"`
		Sequence  int    `json:"sequence"`
		Edition   int    `json:"edition"`
		URL       string `json:"url"`
		PDF       string `json:"pdf"`
		JP2       string `json:"jp2"`
		OCR       string `json:"ocr"`
	} `json:"items"`
}

func (c *Client) fetchAndParse(ctx context.Context, rawURL string) ([]PageMetadata, Pagination, error) {
	body, err := c.http.get(ctx, rawURL)
	if err != nil {
		return nil, Pagination{}, err
	}

	var parsed searchResponseJSON
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Pagination{}, kinderr.Wrap(kinderr.CorruptData, err, "parse search response")
	}

	pages := make([]PageMetadata, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		issueDate, err := time.Parse("2006-01-02", item.DateIssue)
		if err != nil {
			continue
		}
		state := ""
		if len(item.State) > 0 {
			state = item.State[0]
		}
		pages = append(pages, PageMetadata{
			LCCN:       lccnFromID(item.ID),
			Title:      item.Title,
			State:      state,
			IssueDate:  issueDate,
			Sequence:   item.Sequence,
			URL:        item.URL,
			PDFURL:     item.PDF,
			JP2URL:     item.JP2,
			OCRTextURL: item.OCR,
		})
	}

	totalPages := 1
	if parsed.ItemsPerPage > 0 {
		totalPages = (parsed.TotalItems + parsed.ItemsPerPage - 1) / parsed.ItemsPerPage
	}
	pagination := Pagination{
		CurrentPage: parsed.StartIndex/maxInt(parsed.ItemsPerPage, 1) + 1,
		TotalPages:  totalPages,
		TotalItems:  parsed.TotalItems,
	}
	return pages, pagination, nil
}

// searchAdvanced is strategy 1: advanced search with MM/DD/YYYY
// start/end and dateFilterType=range.
func (c *Client) searchAdvanced(ctx context.Context, req SearchRequest) ([]PageMetadata, Pagination, error) {
	q := url.Values{}
	if req.Keywords != "" {
		q.Set("andtext", req.Keywords)
	}
	if req.State != "" {
		q.Set("state", req.State)
	}
	if req.PublicationID != "" {
		q.Set("lccn", req.PublicationID)
	}
	if !req.DateStart.IsZero() {
		q.Set("date1", req.DateStart.Format("01/02/2006"))
	}
	if !req.DateEnd.IsZero() {
		q.Set("date2", req.DateEnd.Format("01/02/2006"))
	}
	q.Set("dateFilterType", "range")
	q.Set("searchType", "advanced")
	q.Set("page", strconv.Itoa(req.PageIndex))
	q.Set("format", "json")

	rawURL := fmt.Sprintf("%s/search/pages/results/?%s", c.baseURL, q.Encode())
	return c.fetchAndParse(ctx, rawURL)
}

// searchPerDay is strategy 2: construct one issue-listing URL per
// calendar day in range, only attempted when the range is short enough
// to be worthwhile. Results are filtered client-side to the requested
// window, since this strategy has no native range semantics.
func (c *Client) searchPerDay(ctx context.Context, req SearchRequest) ([]PageMetadata, Pagination, error) {
	if req.PublicationID == "" || req.DateStart.IsZero() || req.DateEnd.IsZero() {
		return nil, Pagination{}, nil
	}
	if req.DateEnd.Sub(req.DateStart) > directDateRangeLimit {
		return nil, Pagination{}, nil
	}

	var all []PageMetadata
	for d := req.DateStart; !d.After(req.DateEnd); d = d.AddDate(0, 0, 1) {
		rawURL := fmt.Sprintf("%s/lccn/%s/%s/ed-1.json", c.baseURL, req.PublicationID, d.Format("2006-01-02"))
		body, err := c.http.get(ctx, rawURL)
		if err != nil {
			if kinderr.KindOf(err) == kinderr.PermanentUpstream || kinderr.KindOf(err) == kinderr.NotFound {
				continue
			}
			return nil, Pagination{}, err
		}
		var issue struct {
			Pages []struct {
				Sequence int    `json:"sequence"`
				URL      string `json:"url"`
			} `json:"pages"`
		}
		if err := json.Unmarshal(body, &issue); err != nil {
			continue
		}
		for _, p := range issue.Pages {
			all = append(all, PageMetadata{
				LCCN:      req.PublicationID,
				IssueDate: d,
				Sequence:  p.Sequence,
				URL:       p.URL,
			})
		}
	}
	return filterWithinRange(all, req.DateStart, req.DateEnd), Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: len(all)}, nil
}

// searchYearMonthKeyword is strategy 3: fall back to a keyword search
// using "<month name> <year>" as the query text.
func (c *Client) searchYearMonthKeyword(ctx context.Context, req SearchRequest) ([]PageMetadata, Pagination, error) {
	if req.DateStart.IsZero() {
		return nil, Pagination{}, nil
	}
	keyword := req.DateStart.Format("January 2006")
	pages, pagination, err := c.keywordSearch(ctx, req, keyword)
	if err != nil {
		return nil, Pagination{}, err
	}
	return filterWithinRange(pages, req.DateStart, req.DateEnd), pagination, nil
}

// searchYearKeyword is strategy 4: the final fallback, keyed only on
// the year.
func (c *Client) searchYearKeyword(ctx context.Context, req SearchRequest) ([]PageMetadata, Pagination, error) {
	if req.DateStart.IsZero() {
		return nil, Pagination{}, nil
	}
	keyword := req.DateStart.Format("2006")
	pages, pagination, err := c.keywordSearch(ctx, req, keyword)
	if err != nil {
		return nil, Pagination{}, err
	}
	return filterWithinRange(pages, req.DateStart, req.DateEnd), pagination, nil
}

func (c *Client) keywordSearch(ctx context.Context, req SearchRequest, keyword string) ([]PageMetadata, Pagination, error) {
	q := url.Values{}
	terms := keyword
	if req.Keywords != "" {
		terms = req.Keywords + " " + keyword
	}
	q.Set("andtext", terms)
	if req.State != "" {
		q.Set("state", req.State)
	}
	if req.PublicationID != "" {
		q.Set("lccn", req.PublicationID)
	}
	q.Set("page", strconv.Itoa(req.PageIndex))
	q.Set("format", "json")

	rawURL := fmt.Sprintf("%s/search/pages/results/?%s", c.baseURL, q.Encode())
	return c.fetchAndParse(ctx, rawURL)
}

// filterWithinRange keeps only pages whose issue date lies within
// [start, end], required of strategies 2-4 which have no native range
// semantics of their own.
func filterWithinRange(pages []PageMetadata, start, end time.Time) []PageMetadata {
	if start.IsZero() && end.IsZero() {
		return pages
	}
	out := pages[:0:0]
	for _, p := range pages {
		if !start.IsZero() && p.IssueDate.Before(start) {
			continue
		}
		if !end.IsZero() && p.IssueDate.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Download fetches the requested formats for a page and returns their
// byte manifests.
func (c *Client) Download(ctx context.Context, page PageMetadata, formats []Format) ([]Manifest, error) {
	var manifests []Manifest
	for _, f := range formats {
		var rawURL string
		switch f {
		case FormatPDF:
			rawURL = page.PDFURL
		case FormatJP2:
			rawURL = page.JP2URL
		case FormatOCRText:
			rawURL = page.OCRTextURL
		case FormatJSON:
			rawURL = page.JSONURL
		default:
			return nil, kinderr.New(kinderr.Validation, "unknown download format").WithDetail("format", string(f))
		}
		if rawURL == "" {
			continue
		}
		data, err := c.http.get(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, Manifest{Format: f, Bytes: data})
	}
	return manifests, nil
}

func lccnFromID(id string) string {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return id
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
