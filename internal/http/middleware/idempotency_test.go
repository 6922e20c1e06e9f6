package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyContextHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/inbound", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key, got %q", k)
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag must read as false")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("expected IsReplay=true")
	}
}

// seenSet is a lookup over a fixed set of accepted message ids.
type seenSet struct {
	ids   map[string]bool
	err   error
	calls []string
}

func (s *seenSet) lookup(_ context.Context, key string) (bool, error) {
	s.calls = append(s.calls, key)
	return s.ids[key], s.err
}

type idemState struct {
	Key    string
	Replay bool
	Bypass bool
}

func TestIdempotencyValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		opts     IdempotencyOptions
		seen     *seenSet
		key      string
		wantCode int
		want     idemState
		lookups  int
	}{
		{
			name:     "no header skips lookup",
			seen:     &seenSet{},
			wantCode: http.StatusOK,
		},
		{
			name:     "message id accepted by default pattern",
			key:      "<CAF=x+y_1@mail.example.com>",
			wantCode: http.StatusOK,
			want:     idemState{Key: "<CAF=x+y_1@mail.example.com>"},
		},
		{
			name:     "space rejected",
			seen:     &seenSet{},
			key:      "has space",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "too long",
			opts:     IdempotencyOptions{MaxLen: 5},
			key:      "abcdef",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "default cap is the mail line limit",
			key:      strings.Repeat("a", 999),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "custom pattern",
			opts:     IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)},
			key:      "abc123",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown id",
			seen:     &seenSet{ids: map[string]bool{"<old@x>": true}},
			key:      "<m1@x>",
			wantCode: http.StatusOK,
			want:     idemState{Key: "<m1@x>"},
			lookups:  1,
		},
		{
			name:     "known id is a replay and bypasses the limiter",
			seen:     &seenSet{ids: map[string]bool{"<old@x>": true}},
			key:      "<old@x>",
			wantCode: http.StatusOK,
			want:     idemState{Key: "<old@x>", Replay: true, Bypass: true},
			lookups:  1,
		},
		{
			name:     "unauthorized caller skips lookup",
			opts:     IdempotencyOptions{Authorized: func(*gin.Context) bool { return false }},
			seen:     &seenSet{ids: map[string]bool{"<old@x>": true}},
			key:      "<old@x>",
			wantCode: http.StatusOK,
			want:     idemState{Key: "<old@x>"},
		},
		{
			name:     "lookup error is not a replay",
			seen:     &seenSet{ids: map[string]bool{"<m3@x>": true}, err: errors.New("db down")},
			key:      "<m3@x>",
			wantCode: http.StatusOK,
			want:     idemState{Key: "<m3@x>"},
			lookups:  1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var lookup IdempotencyLookup
			if tc.seen != nil {
				lookup = tc.seen.lookup
			}
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, lookup))
			r.POST("/inbound", func(c *gin.Context) {
				key, _ := GetIdempotencyKey(c)
				c.JSON(http.StatusOK, idemState{Key: key, Replay: IsReplay(c), Bypass: IsRateBypass(c)})
			})

			req := httptest.NewRequest(http.MethodPost, "/inbound", nil)
			if tc.key != "" {
				req.Header.Set(HeaderIdempotencyKey, tc.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("code = %d; want %d (%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if w.Code == http.StatusBadRequest {
				if !strings.Contains(w.Body.String(), `"bad_idempotency_key"`) {
					t.Fatalf("unexpected error body %s", w.Body.String())
				}
				return
			}
			var got idemState
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if got != tc.want {
				t.Fatalf("state = %+v; want %+v", got, tc.want)
			}
			if tc.seen != nil && len(tc.seen.calls) != tc.lookups {
				t.Fatalf("lookups = %v; want %d", tc.seen.calls, tc.lookups)
			}
		})
	}
}
