package nomad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Requester binds a Client to one API endpoint ("job", "node", "acl", ...).
// Every resource wrapper is built on one.
type Requester struct {
	client   *Client
	endpoint string
	identity string
}

// For returns a copy of r whose not-found errors name identity instead of
// the first path segment.
func (r Requester) For(identity string) Requester {
	r.identity = identity
	return r
}

// Request sends one request and maps the status code to an error. The
// returned response is only non-nil on 2xx.
func (r Requester) Request(ctx context.Context, method string, params Params, body any, segments ...string) (*Response, error) {
	resp, err := r.client.Send(ctx, method, r.endpoint, segments, params, body)
	if err != nil {
		return nil, err
	}
	if err := r.check(method, segments, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Record performs the request and decodes a JSON object.
func (r Requester) Record(ctx context.Context, method string, params Params, body any, segments ...string) (Record, error) {
	return call[Record](ctx, r, method, params, body, segments)
}

// OptionalRecord is Record for endpoints that answer a literal null when
// there is nothing to return. Null yields a nil Record and no error.
func (r Requester) OptionalRecord(ctx context.Context, method string, params Params, body any, segments ...string) (Record, error) {
	resp, err := r.Request(ctx, method, params, body, segments...)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(resp.Body), []byte("null")) {
		return nil, nil
	}
	var out Record
	if err := decode(resp.Body, &out); err != nil {
		return nil, &DecodeError{Path: r.path(segments), Err: err}
	}
	return out, nil
}

// Records performs the request and decodes a JSON array of objects.
func (r Requester) Records(ctx context.Context, method string, params Params, body any, segments ...string) ([]Record, error) {
	return call[[]Record](ctx, r, method, params, body, segments)
}

// OK performs the request and reports whether it succeeded. It is true
// exactly when the response status was 2xx.
func (r Requester) OK(ctx context.Context, method string, params Params, body any, segments ...string) (bool, error) {
	if _, err := r.Request(ctx, method, params, body, segments...); err != nil {
		return false, err
	}
	return true, nil
}

func call[T any](ctx context.Context, r Requester, method string, params Params, body any, segments []string) (T, error) {
	var out T
	resp, err := r.Request(ctx, method, params, body, segments...)
	if err != nil {
		return out, err
	}
	if err := decode(resp.Body, &out); err != nil {
		var zero T
		return zero, &DecodeError{Path: r.path(segments), Err: err}
	}
	return out, nil
}

func decode(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return errors.New("empty response body")
	case string(trimmed) == "null":
		return errors.New("null response body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// check maps a response status onto the error taxonomy.
func (r Requester) check(method string, segments []string, resp *Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		identity := r.identity
		if identity == "" && len(segments) > 0 {
			identity = segments[0]
		}
		return &NotFoundError{Identity: identity, Path: r.path(segments), Body: string(resp.Body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       r.path(segments),
			Body:       string(resp.Body),
		}
	}
	return nil
}

func (r Requester) path(segments []string) string {
	parts := append([]string{r.client.version, r.endpoint}, segments...)
	return "/" + strings.Join(parts, "/")
}
