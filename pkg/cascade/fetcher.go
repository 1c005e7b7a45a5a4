// Package cascade resolves dependent option lists: when a parent field
// changes, every field declaring depends_on_field on it gets a fresh option
// set from one of three sources, tried in priority order — reference-entity
// records, a configured options endpoint, or a filtered static list.
package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Fetcher is the remote half of cascade resolution. Implementations talk to
// the record/reference services; the loader owns mapping and filtering.
type Fetcher interface {
	// FetchReferenceRecords returns raw records of the referenced entity
	// matching the supplied filters.
	FetchReferenceRecords(ctx context.Context, entityID string, filters map[string]any) ([]map[string]any, error)

	// FetchOptions calls an options endpoint and returns value/label pairs.
	FetchOptions(ctx context.Context, endpoint string, params map[string]any) ([]metadata.Option, error)
}

// HTTPOption customises the HTTP fetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient overrides the http.Client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithBaseURL sets the prefix for reference-entity lookups, e.g.
// "https://api.example.com/entities".
func WithBaseURL(base string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithRequestTimeout bounds each fetch. Zero disables the per-request
// timeout and leaves cancellation to the caller's context.
func WithRequestTimeout(timeout time.Duration) HTTPOption {
	return func(f *HTTPFetcher) { f.timeout = timeout }
}

// HTTPFetcher resolves options over plain GET requests. Responses may wrap
// the payload in an {items|data|records} envelope or be a bare array; labels
// are stripped of markup before they reach a widget.
type HTTPFetcher struct {
	client    *http.Client
	baseURL   string
	timeout   time.Duration
	sanitizer *bluemonday.Policy
}

// NewHTTPFetcher constructs a fetcher applying any provided options.
func NewHTTPFetcher(options ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    http.DefaultClient,
		timeout:   10 * time.Second,
		sanitizer: bluemonday.StrictPolicy(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// FetchReferenceRecords implements Fetcher against
// {baseURL}/{entityID}/records?field=value.
func (f *HTTPFetcher) FetchReferenceRecords(ctx context.Context, entityID string, filters map[string]any) ([]map[string]any, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, errors.New("cascade: entity id is required")
	}
	if f.baseURL == "" {
		return nil, errors.New("cascade: base url is not configured")
	}

	endpoint := f.baseURL + "/" + url.PathEscape(entityID) + "/records"
	body, err := f.get(ctx, endpoint, filters)
	if err != nil {
		return nil, err
	}

	rows, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// FetchOptions implements Fetcher against an arbitrary GET endpoint
// returning value/label entries.
func (f *HTTPFetcher) FetchOptions(ctx context.Context, endpoint string, params map[string]any) ([]metadata.Option, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("cascade: endpoint url is required")
	}

	body, err := f.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	rows, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	options := make([]metadata.Option, 0, len(rows))
	for _, row := range rows {
		entry, ok := row.(map[string]any)
		if !ok {
			continue
		}
		option := metadata.Option{
			Value: stringValue(firstOf(entry, "value", "id")),
			Label: stringValue(firstOf(entry, "label", "name", "title")),
		}
		if option.Value == "" {
			continue
		}
		if option.Label == "" {
			option.Label = option.Value
		}
		option.Label = f.sanitizer.Sanitize(option.Label)
		options = append(options, option)
	}
	return options, nil
}

func (f *HTTPFetcher) get(ctx context.Context, endpoint string, params map[string]any) ([]byte, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("cascade: invalid endpoint %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		query := target.Query()
		for key, value := range params {
			query.Set(key, stringValue(value))
		}
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("cascade: unexpected status " + resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// decodeEnvelope accepts a bare JSON array or an object wrapping one under
// items, data, or records.
func decodeEnvelope(body []byte) ([]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var rows []any
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("cascade: decode response: %w", err)
		}
		return rows, nil
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("cascade: decode response: %w", err)
	}
	for _, key := range []string{"items", "data", "records"} {
		if rows, ok := envelope[key].([]any); ok {
			return rows, nil
		}
	}
	return nil, errors.New("cascade: response has no items, data, or records array")
}

func firstOf(entry map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := entry[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprint(value)
	}
}
