package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/linewarden/internal/types"
)

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 512

// RESTConfig configures the catalog REST query client.
type RESTConfig struct {
	BaseURL    string
	APIVersion string
	Token      string
	Timeout    time.Duration
}

// RESTClient runs queries against the catalog REST query endpoint and
// follows nextRecordsUrl until the result set is complete.
type RESTClient struct {
	cfg    RESTConfig
	http   *http.Client
	logger *logrus.Logger
}

// queryPage is one page of the query endpoint response.
type queryPage struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// NewRESTClient creates a client. httpClient may be nil.
func NewRESTClient(cfg RESTConfig, httpClient *http.Client, logger *logrus.Logger) (*RESTClient, error) {
	if cfg.BaseURL == "" {
		return nil, types.NewConfigError("source", "base_url required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, types.NewConfigError("source", "invalid base_url: %v", err)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v59.0"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &RESTClient{cfg: cfg, http: httpClient, logger: logger}, nil
}

// ExecuteQuery implements RecordSource.
func (c *RESTClient) ExecuteQuery(ctx context.Context, query string) (Result, error) {
	endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, url.QueryEscape(query))

	var result Result
	for endpoint != "" {
		page, err := c.fetchPage(ctx, endpoint)
		if err != nil {
			return Result{}, err
		}
		result.TotalSize = page.TotalSize
		for _, raw := range page.Records {
			rec, err := decodeRecord(raw)
			if err != nil {
				return Result{}, fmt.Errorf("%w: decode record: %v", types.ErrSourceUnavailable, err)
			}
			result.Records = append(result.Records, rec)
		}
		if page.Done || page.NextRecordsURL == "" {
			break
		}
		endpoint = strings.TrimRight(c.cfg.BaseURL, "/") + page.NextRecordsURL
	}

	c.logger.WithFields(logrus.Fields{
		"records": len(result.Records),
		"total":   result.TotalSize,
	}).Debug("catalog query complete")
	return result, nil
}

// fetchPage performs one GET against the query endpoint.
func (c *RESTClient) fetchPage(ctx context.Context, endpoint string) (*queryPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: HTTP %d: %s", types.ErrSourceUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	}

	var page queryPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode page: %v", types.ErrSourceUnavailable, err)
	}
	return &page, nil
}

// decodeRecord keeps numbers as json.Number so charges keep their exact
// decimal representation.
func decodeRecord(raw json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	delete(rec, "attributes")
	return rec, nil
}
