package nomad

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func fixedServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestRequester_NotFound(t *testing.T) {
	ts := fixedServer(http.StatusNotFound, "job not found")
	defer ts.Close()
	c := newTestClient(t, ts, Config{})

	_, err := c.Requester("job").Record(context.Background(), http.MethodGet, nil, nil, "web")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if nf.Identity != "web" {
		t.Errorf("Identity = %q, want web", nf.Identity)
	}
	if nf.Path != "/v1/job/web" {
		t.Errorf("Path = %q, want /v1/job/web", nf.Path)
	}
	if nf.Body != "job not found" {
		t.Errorf("Body = %q", nf.Body)
	}
	if StatusCode(err) != 404 {
		t.Errorf("StatusCode = %d, want 404", StatusCode(err))
	}
}

func TestRequester_NotFoundIdentityOverride(t *testing.T) {
	ts := fixedServer(http.StatusNotFound, "")
	defer ts.Close()
	c := newTestClient(t, ts, Config{})

	_, err := c.Requester("acl").For("abc").Record(context.Background(), http.MethodGet, nil, nil, "token", "abc")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if nf.Identity != "abc" {
		t.Errorf("Identity = %q, want abc", nf.Identity)
	}
}

func TestRequester_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad request", http.StatusBadRequest},
		{"forbidden", http.StatusForbidden},
		{"server error", http.StatusInternalServerError},
		{"redirect", http.StatusNotModified},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := fixedServer(tc.status, "Permission denied")
			defer ts.Close()
			c := newTestClient(t, ts, Config{})

			_, err := c.Requester("jobs").Records(context.Background(), http.MethodGet, nil, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tc.status)
			}
			if tc.status != http.StatusNotModified && apiErr.Body != "Permission denied" {
				t.Errorf("Body = %q", apiErr.Body)
			}
			if IsNotFound(err) {
				t.Error("APIError must not match ErrNotFound")
			}
		})
	}
}

func TestAPIError_TruncatesMessageNotBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	err := &APIError{StatusCode: 500, Method: "GET", Path: "/v1/jobs", Body: long}
	if len(err.Body) != 500 {
		t.Errorf("Body was modified")
	}
	if !strings.HasSuffix(err.Error(), "...") {
		t.Errorf("Error() should truncate the body: %q", err.Error())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"héllo", 2, "h..."},
		{"日本語", 4, "日..."},
		{"日本語", 6, "日本..."},
	}
	for _, tc := range tests {
		got := truncate(tc.in, tc.max)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tc.in, tc.max)
		}
	}
}

func TestRequester_Decode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		decodes bool
	}{
		{"object", `{"ID":"web","Version":3}`, true},
		{"malformed", `{"ID":`, false},
		{"empty", ``, false},
		{"html", `<html>oops</html>`, false},
		{"trailing garbage", `{"ID":"web","Version":3} <html>oops</html>`, false},
		{"second value", `{"ID":"web","Version":3}{"ID":"api"}`, false},
		{"null", `null`, false},
		{"trailing whitespace", "{\"ID\":\"web\",\"Version\":3}\n", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := fixedServer(http.StatusOK, tc.body)
			defer ts.Close()
			c := newTestClient(t, ts, Config{})

			rec, err := c.Requester("job").Record(context.Background(), http.MethodGet, nil, nil, "web")
			if tc.decodes {
				if err != nil {
					t.Fatalf("Record returned error: %v", err)
				}
				if rec.ID() != "web" || rec.Int("Version") != 3 {
					t.Errorf("rec = %v", rec)
				}
				if _, ok := rec["Version"].(json.Number); !ok {
					t.Errorf("Version decoded as %T, want json.Number", rec["Version"])
				}
				return
			}
			if !IsDecode(err) {
				t.Fatalf("error = %v, want decode error", err)
			}
			if rec != nil {
				t.Errorf("rec = %v, want nil on decode error", rec)
			}
		})
	}
}

func TestRequester_OK(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := fixedServer(tc.status, "")
			defer ts.Close()
			c := newTestClient(t, ts, Config{})

			ok, err := c.Requester("system").OK(context.Background(), http.MethodPut, nil, nil, "gc")
			if ok != tc.want {
				t.Errorf("OK = %v, want %v", ok, tc.want)
			}
			if tc.want && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.want && err == nil {
				t.Error("expected an error for a non-2xx status")
			}
		})
	}
}

func TestRecord_Accessors(t *testing.T) {
	rec := Record{
		"ID":      "web",
		"Name":    "web-svc",
		"Count":   json.Number("4"),
		"Float":   2.0,
		"Stop":    true,
		"Meta":    map[string]any{"owner": "ops"},
		"Numeric": "12",
	}
	if rec.ID() != "web" || rec.Name() != "web-svc" {
		t.Errorf("ID/Name = %q/%q", rec.ID(), rec.Name())
	}
	if rec.Int("Count") != 4 || rec.Int("Float") != 2 || rec.Int("Numeric") != 12 || rec.Int("Missing") != 0 {
		t.Errorf("Int conversions wrong")
	}
	if !rec.Bool("Stop") || rec.Bool("Name") {
		t.Errorf("Bool conversions wrong")
	}
	if rec.Map("Meta").String("owner") != "ops" {
		t.Errorf("Map(Meta) = %v", rec.Map("Meta"))
	}
	if rec.Map("ID") != nil {
		t.Errorf("Map of a string field should be nil")
	}
}

func TestRecord_Matches(t *testing.T) {
	rec := Record{"ID": "abc-123", "Name": "worker-1"}
	tests := []struct {
		id   string
		want bool
	}{
		{"abc-123", true},
		{"worker-1", true},
		{"abc", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := rec.Matches(tc.id); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	in := Record{
		"Count": json.Number("3"),
		"Ratio": json.Number("0.5"),
		"Groups": []any{
			map[string]any{"Count": json.Number("2")},
		},
		"Name": "web",
	}
	out := Normalize(in).(map[string]any)
	if out["Count"] != int64(3) || out["Ratio"] != 0.5 || out["Name"] != "web" {
		t.Errorf("Normalize() = %v", out)
	}
	group := out["Groups"].([]any)[0].(map[string]any)
	if group["Count"] != int64(2) {
		t.Errorf("nested Count = %#v, want int64(2)", group["Count"])
	}
	if _, ok := in["Count"].(json.Number); !ok {
		t.Error("Normalize must not modify its argument")
	}
}

func TestRequester_OptionalRecord(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNil bool
		wantErr bool
	}{
		{"null", "null\n", true, false},
		{"object", `{"ID":"d1"}`, false, false},
		{"empty", ``, true, true},
		{"trailing garbage", `{"ID":"d1"} x`, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := fixedServer(http.StatusOK, tc.body)
			defer ts.Close()
			c := newTestClient(t, ts, Config{})

			rec, err := c.Requester("job").OptionalRecord(context.Background(), http.MethodGet, nil, nil, "web", "deployment")
			if tc.wantErr != IsDecode(err) {
				t.Fatalf("error = %v, want decode error %v", err, tc.wantErr)
			}
			if tc.wantNil != (rec == nil) {
				t.Errorf("rec = %v, want nil %v", rec, tc.wantNil)
			}
		})
	}
}
