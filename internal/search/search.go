// Package search queries the Google Custom Search JSON API for job postings.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
)

const (
	apiURL       = "https://www.googleapis.com/customsearch/v1"
	defaultSort  = "date"
	maxPerPage   = 10
	maxBodyInErr = 512
)

// Item is one search hit. Pagemap keeps the metadata blocks the parser reads.
type Item struct {
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	Link        string  `json:"link"`
	DisplayLink string  `json:"displayLink"`
	Pagemap     Pagemap `json:"pagemap"`
}

type Pagemap struct {
	CSEImage []Image             `json:"cse_image"`
	Metatags []map[string]string `json:"metatags"`
}

type Image struct {
	Src string `json:"src"`
}

type Results struct {
	Items []*Item
	// TotalResults is the engine estimate, not the number of returned items.
	TotalResults int
}

func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

type Options struct {
	APIKey     string
	CX         string
	APIURL     string
	Sort       string
	MaxResults int
	Pages      int
	Timeout    time.Duration
}

type Client struct {
	apiKey     string
	cx         string
	sort       string
	perPage    int
	pages      int
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	perPage := opts.MaxResults
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}

	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}

	base := strings.TrimSpace(opts.APIURL)
	if base == "" {
		base = apiURL
	}

	sort := opts.Sort
	if sort == "" {
		sort = defaultSort
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		apiKey:     opts.APIKey,
		cx:         opts.CX,
		sort:       sort,
		perPage:    perPage,
		pages:      pages,
		logger:     logger,
		APIURL:     base,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Search runs the query for term. dateRestrict follows the API syntax (d3, w1, m2)
// and is omitted when empty. Pages are requested until a short page comes back.
func (c *Client) Search(ctx context.Context, term, dateRestrict string) (*Results, error) {
	results := &Results{}

	for page := 0; page < c.pages; page++ {
		q := c.params(term)
		q.Set("num", strconv.Itoa(c.perPage))
		if dateRestrict != "" {
			q.Set("dateRestrict", dateRestrict)
		}
		if page > 0 {
			q.Set("start", strconv.Itoa(page*c.perPage+1))
		}

		resp, err := c.get(ctx, q)
		if err != nil {
			return nil, err
		}

		items, err := decodeItems(resp.Items)
		if err != nil {
			return nil, &jobs.SearchAPIError{Reason: "decode items", Err: err}
		}

		results.Items = append(results.Items, items...)
		if total, err := strconv.Atoi(resp.SearchInformation.TotalResults); err == nil {
			results.TotalResults = total
		}

		c.logger.Debug("got search page",
			zap.Int("page", page+1),
			zap.Int("items", len(items)),
			zap.Int("total_results", results.TotalResults),
		)

		if len(items) < c.perPage {
			break
		}
	}

	return results, nil
}

// ValidateCredentials issues a one-result query and reports whether the API accepted it.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	q := c.params("test")
	q.Set("num", "1")

	resp, err := c.get(ctx, q)
	if err != nil {
		return err
	}

	if resp.Items == nil && resp.SearchInformation.TotalResults == "" {
		return &jobs.SearchAPIError{Reason: "unexpected response without items or search information"}
	}
	return nil
}

type apiResponse struct {
	Items             []map[string]any `json:"items"`
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
}

func (c *Client) params(term string) url.Values {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.cx)
	q.Set("q", term)
	q.Set("sort", c.sort)
	return q
}

func (c *Client) get(ctx context.Context, q url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL, nil)
	if err != nil {
		return nil, &jobs.SearchAPIError{Reason: "build request", Err: err}
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("make search request", zap.String("q", q.Get("q")), zap.String("start", q.Get("start")))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &jobs.SearchAPIError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &jobs.SearchAPIError{Reason: "read response", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &jobs.SearchAPIError{Reason: "decode response", Err: err}
	}

	return &parsed, nil
}

func statusError(code int, body []byte) error {
	reason := fmt.Sprintf("HTTP %d", code)
	switch code {
	case http.StatusBadRequest:
		reason = "bad request"
	case http.StatusForbidden:
		reason = "api key or quota issue"
	case http.StatusTooManyRequests:
		reason = "rate limited"
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyInErr {
		text = text[:maxBodyInErr]
	}

	return &jobs.SearchAPIError{StatusCode: code, Reason: reason, Body: text}
}

// decodeItems maps the loosely typed API items onto Item. Items that do not fit
// the shape are left to the parser to drop.
func decodeItems(raw []map[string]any) ([]*Item, error) {
	items := make([]*Item, 0, len(raw))

	for _, entry := range raw {
		var item Item
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &item,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create decoder")
		}

		if err := decoder.Decode(entry); err != nil {
			// keep the scalar fields, metadata is optional
			item.Pagemap = Pagemap{}
			if err := decodeScalars(entry, &item); err != nil {
				continue
			}
		}

		items = append(items, &item)
	}

	return items, nil
}

func decodeScalars(entry map[string]any, item *Item) error {
	scalars := map[string]any{}
	for _, key := range []string{"title", "snippet", "link", "displayLink"} {
		if v, ok := entry[key]; ok {
			scalars[key] = v
		}
	}
	return mapstructure.WeakDecode(scalars, item)
}
