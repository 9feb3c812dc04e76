package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/wabridge/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	testlog.Start(t)
	req := httptest.NewRequest("GET", "/status/alice?token=from-query", nil)
	if got := TokenFromRequest(req); got != "from-query" {
		t.Fatalf("query token got=%q", got)
	}
	req.Header.Set("Authorization", "Bearer from-header")
	if got := TokenFromRequest(req); got != "from-header" {
		t.Fatalf("bearer token should win, got=%q", got)
	}
	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(req); got != "" {
		t.Fatalf("non-bearer header accepted: %q", got)
	}
	if got := TokenFromRequest(nil); got != "" {
		t.Fatalf("nil request token=%q", got)
	}
}

func TestCheck(t *testing.T) {
	testlog.Start(t)
	req := httptest.NewRequest("GET", "/sessions?token=s3cret", nil)
	if err := Check(nil, req); err != nil {
		t.Fatalf("open api rejected: %v", err)
	}
	if FromConfig("  ") != nil {
		t.Fatalf("blank token should disable auth")
	}
	v := FromConfig("s3cret")
	if err := Check(v, req); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	bad := httptest.NewRequest("GET", "/sessions", nil)
	if err := Check(v, bad); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing token accepted: %v", err)
	}
}
