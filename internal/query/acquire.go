package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
)

// maxResponseBytes bounds how much of a backend response is read.
const maxResponseBytes = 32 << 20

// SQLRequest is the body POSTed to a SQL source endpoint.
type SQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// SQLResponse is the envelope a SQL source endpoint answers with.
type SQLResponse struct {
	Success bool            `json:"success"`
	Data    []models.Record `json:"data"`
	Error   string          `json:"error,omitempty"`
}

func (e *Engine) acquireSQL(ctx context.Context, cfg models.QueryConfig, vars map[string]any) ([]models.Record, error) {
	if cfg.Source.Endpoint == "" {
		return nil, errs.NewConfigurationError("source.endpoint", "sql source requires an endpoint")
	}
	query := cfg.RawQuery
	bound := vars
	if query == "" && cfg.Query != nil {
		built, params, err := BuildSQL(*cfg.Query)
		if err != nil {
			return nil, err
		}
		query = built
		bound = mergeVars(params, vars)
	}
	if strings.TrimSpace(query) == "" {
		return nil, errs.NewConfigurationError("rawQuery", "sql source requires a query")
	}
	if bound == nil {
		bound = map[string]any{}
	}

	body, err := json.Marshal(SQLRequest{Query: query, Variables: bound})
	if err != nil {
		return nil, errs.NewConfigurationError("variables", fmt.Sprintf("variables are not serializable: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Source.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewConfigurationError("source.endpoint", fmt.Sprintf("invalid sql endpoint: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Source.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.NewTransientIOError(string(models.SourceSQL), 0, err)
	}
	defer resp.Body.Close()

	var out SQLResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		if resp.StatusCode >= 300 {
			return nil, errs.NewTransientIOError(string(models.SourceSQL), resp.StatusCode, nil)
		}
		return nil, errs.NewTransientIOError(string(models.SourceSQL), 0, fmt.Errorf("decode response: %w", err))
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "query failed"
		}
		return nil, errs.NewTransientIOError(string(models.SourceSQL), resp.StatusCode, fmt.Errorf("%s", msg))
	}
	if out.Data == nil {
		out.Data = []models.Record{}
	}
	return out.Data, nil
}

func (e *Engine) acquireAPI(ctx context.Context, cfg models.QueryConfig, vars map[string]any) ([]models.Record, error) {
	if cfg.Source.Endpoint == "" {
		return nil, errs.NewConfigurationError("source.endpoint", "api source requires an endpoint")
	}
	method := strings.ToUpper(cfg.Source.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := url.Parse(cfg.Source.Endpoint)
	if err != nil {
		return nil, errs.NewConfigurationError("source.endpoint", fmt.Sprintf("invalid api endpoint: %v", err))
	}
	if method == http.MethodGet && len(vars) > 0 {
		q := target.Query()
		for k, v := range vars {
			if _, isList := toSlice(v); isList {
				continue
			}
			if _, isMap := v.(map[string]any); isMap || v == nil {
				continue
			}
			if _, exists := q[k]; !exists {
				q.Set(k, toString(v))
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if cfg.Source.Body != nil && method != http.MethodGet {
		b, err := json.Marshal(cfg.Source.Body)
		if err != nil {
			return nil, errs.NewConfigurationError("source.body", fmt.Sprintf("body is not serializable: %v", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errs.NewConfigurationError("source.method", fmt.Sprintf("invalid api request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Source.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.NewTransientIOError(string(models.SourceAPI), 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errs.NewTransientIOError(string(models.SourceAPI), resp.StatusCode, nil)
	}

	var payload any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, errs.NewTransientIOError(string(models.SourceAPI), 0, fmt.Errorf("decode response: %w", err))
	}
	records, err := normalizeRecords(payload)
	if err != nil {
		return nil, errs.NewTransientIOError(string(models.SourceAPI), 0, err)
	}
	return records, nil
}

func (e *Engine) acquireStatic(cfg models.QueryConfig) []models.Record {
	if cfg.Data == nil {
		return []models.Record{}
	}
	return slices.Clone(cfg.Data)
}

// normalizeRecords accepts a bare array, an object with a data array, or a
// single object (wrapped into one record).
func normalizeRecords(payload any) ([]models.Record, error) {
	switch v := payload.(type) {
	case []any:
		return recordsFromList(v), nil
	case map[string]any:
		if data, ok := v["data"].([]any); ok {
			return recordsFromList(data), nil
		}
		return []models.Record{v}, nil
	case nil:
		return []models.Record{}, nil
	default:
		return nil, fmt.Errorf("unexpected payload of type %T", payload)
	}
}

func recordsFromList(items []any) []models.Record {
	out := make([]models.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
			continue
		}
		out = append(out, models.Record{RoleValue: item})
	}
	return out
}

func mergeVars(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
