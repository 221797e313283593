package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// passThrough answers 200 so tests can tell whether a middleware let a
// request through.
var passThrough = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// reasons collects the reasons passed to a reject hook.
type reasons []string

func (r *reasons) record(reason string) { *r = append(*r, reason) }

func TestTokenAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		token         string
		header        string
		wantCode      int
		wantChallenge string
	}{
		{name: "disabled", token: "", header: "", wantCode: http.StatusOK},
		{name: "disabled ignores header", token: "", header: "Bearer anything", wantCode: http.StatusOK},
		{name: "correct token", token: "secret", header: "Bearer secret", wantCode: http.StatusOK},
		{name: "lowercase scheme", token: "secret", header: "bearer secret", wantCode: http.StatusOK},
		{name: "padded token", token: "secret", header: "  Bearer  secret ", wantCode: http.StatusOK},
		{name: "missing header", token: "secret", header: "", wantCode: http.StatusUnauthorized, wantChallenge: `Bearer realm="promptdoc"`},
		{name: "basic scheme", token: "secret", header: "Basic dXNlcjpwYXNz", wantCode: http.StatusUnauthorized, wantChallenge: `Bearer realm="promptdoc"`},
		{name: "scheme only", token: "secret", header: "Bearer", wantCode: http.StatusUnauthorized, wantChallenge: `Bearer realm="promptdoc"`},
		{name: "wrong token", token: "secret", header: "Bearer secre", wantCode: http.StatusUnauthorized, wantChallenge: `error="invalid_token"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got reasons
			h := newTokenAuth(tc.token, got.record).wrap(passThrough)

			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			challenge := w.Header().Get("WWW-Authenticate")
			if !strings.Contains(challenge, tc.wantChallenge) {
				t.Errorf("WWW-Authenticate = %q, want it to contain %q", challenge, tc.wantChallenge)
			}
			if tc.wantCode == http.StatusUnauthorized {
				if len(got) != 1 || got[0] != "unauthorized" {
					t.Errorf("reject reasons = %v, want [unauthorized]", got)
				}
			} else if len(got) != 0 {
				t.Errorf("allowed request recorded a rejection: %v", got)
			}
		})
	}
}

func TestTokenAuth_Check(t *testing.T) {
	t.Parallel()

	a := newTokenAuth("secret", nil)
	for header, want := range map[string]error{
		"":              errNoCredentials,
		"   ":           errNoCredentials,
		"Token secret":  errBadScheme,
		"Bearer other":  errBadToken,
		"BEARER secret": nil,
	} {
		if got := a.check(header); got != want {
			t.Errorf("check(%q) = %v, want %v", header, got, want)
		}
	}
}
