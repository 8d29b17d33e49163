package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/oapi-codegen/runtime"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
)

// StatusError is a non-2xx answer from the HTTP API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// HTTPTransport implements HistoryTransport over the REST gateway.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns a transport rooted at baseURL. A nil client uses
// http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// tablePath renders /v1/tables/{table} plus suffix, escaping the table name.
func tablePath(table, suffix string) (string, error) {
	p, err := runtime.StyleParamWithLocation("simple", false, "table", runtime.ParamLocationPath, table)
	if err != nil {
		return "", err
	}
	return "/v1/tables/" + p + suffix, nil
}

// addQuery appends name=v in form style. Zero values are omitted.
func addQuery(q url.Values, name string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.IsZero() {
		return nil
	}
	// set optional values are sent even when zero
	if rv.Kind() == reflect.Pointer {
		v = rv.Elem().Interface()
	}
	frag, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, v)
	if err != nil {
		return err
	}
	parsed, err := url.ParseQuery(frag)
	if err != nil {
		return err
	}
	for k, vs := range parsed {
		for _, s := range vs {
			q.Add(k, s)
		}
	}
	return nil
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(t.baseURL + path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	return json.Unmarshal(raw, out)
}

func (t *HTTPTransport) Update(ctx context.Context, req *historyv1.UpdateRequest) (*historyv1.UpdateResponse, error) {
	p, err := tablePath(req.Table, "/revisions")
	if err != nil {
		return nil, err
	}
	body := *req
	body.Table = ""
	var out historyv1.UpdateResponse
	if err := t.do(ctx, http.MethodPost, p, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) ListHistory(ctx context.Context, req *historyv1.ListHistoryRequest) (*historyv1.PageResponse, error) {
	p, err := tablePath(req.Table, "/history")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for _, kv := range []struct {
		name string
		v    any
	}{
		{"maxTs", req.MaxTs}, {"cursor", req.Cursor}, {"numItems", req.NumItems},
		{"filter", req.Filter}, {"waitMs", req.WaitMs},
	} {
		if err := addQuery(q, kv.name, kv.v); err != nil {
			return nil, err
		}
	}
	var out historyv1.PageResponse
	if err := t.do(ctx, http.MethodGet, p, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) ListDocumentHistory(ctx context.Context, req *historyv1.ListDocumentHistoryRequest) (*historyv1.PageResponse, error) {
	key, err := runtime.StyleParamWithLocation("simple", false, "key", runtime.ParamLocationPath, req.Key)
	if err != nil {
		return nil, err
	}
	p, err := tablePath(req.Table, "/documents/"+key+"/history")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for _, kv := range []struct {
		name string
		v    any
	}{
		{"maxTs", req.MaxTs}, {"cursor", req.Cursor}, {"numItems", req.NumItems}, {"filter", req.Filter},
	} {
		if err := addQuery(q, kv.name, kv.v); err != nil {
			return nil, err
		}
	}
	var out historyv1.PageResponse
	if err := t.do(ctx, http.MethodGet, p, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) ListSnapshot(ctx context.Context, req *historyv1.ListSnapshotRequest) (*historyv1.SnapshotResponse, error) {
	p, err := tablePath(req.Table, "/snapshot")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for _, kv := range []struct {
		name string
		v    any
	}{
		{"snapshotTs", req.SnapshotTs}, {"currentTs", req.CurrentTs}, {"cursor", req.Cursor},
		{"numItems", req.NumItems}, {"endCursor", req.EndCursor},
	} {
		if err := addQuery(q, kv.name, kv.v); err != nil {
			return nil, err
		}
	}
	var out historyv1.SnapshotResponse
	if err := t.do(ctx, http.MethodGet, p, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Vacuum(ctx context.Context, req *historyv1.VacuumRequest) (*historyv1.VacuumResponse, error) {
	p, err := tablePath(req.Table, "/vacuum")
	if err != nil {
		return nil, err
	}
	body := *req
	body.Table = ""
	var out historyv1.VacuumResponse
	if err := t.do(ctx, http.MethodPost, p, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) GetWatermark(ctx context.Context, table string) (*historyv1.GetWatermarkResponse, error) {
	p, err := tablePath(table, "/watermark")
	if err != nil {
		return nil, err
	}
	var out historyv1.GetWatermarkResponse
	if err := t.do(ctx, http.MethodGet, p, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) CreateTable(ctx context.Context, req *historyv1.CreateTableRequest) (*historyv1.CreateTableResponse, error) {
	var out historyv1.CreateTableResponse
	if err := t.do(ctx, http.MethodPost, "/v1/tables", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) ListTables(ctx context.Context) (*historyv1.ListTablesResponse, error) {
	var out historyv1.ListTablesResponse
	if err := t.do(ctx, http.MethodGet, "/v1/tables", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
