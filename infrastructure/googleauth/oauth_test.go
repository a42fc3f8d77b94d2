package googleauth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
)

func TestTokenFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "token.json")
	want := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken() error = %v", err)
	}
	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken() error = %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("loadToken() = %+v, want %+v", got, want)
	}

	if _, err := loadToken(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("loadToken(missing) error = nil")
	}
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
		status   int
	}{
		{"valid callback", "?state=s1&code=abc", "abc", false, http.StatusOK},
		{"wrong state", "?state=other&code=abc", "", false, http.StatusBadRequest},
		{"denied", "?state=s1&error=access_denied", "", true, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			errs := make(chan error, 1)
			h := callbackHandler("s1", codes, errs)

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			select {
			case code := <-codes:
				if code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
			default:
				if tt.wantCode != "" {
					t.Errorf("no code delivered, want %q", tt.wantCode)
				}
			}
			select {
			case <-errs:
				if !tt.wantErr {
					t.Error("unexpected callback error")
				}
			default:
				if tt.wantErr {
					t.Error("expected callback error")
				}
			}
		})
	}
}

func TestUserClient_MissingCredentials(t *testing.T) {
	_, err := UserClient(t.Context(), Config{CredentialsFile: filepath.Join(t.TempDir(), "none.json")})
	if err == nil {
		t.Error("UserClient() with missing credentials error = nil")
	}
}

func TestServiceAccountClient_InvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	if err := saveToken(path, &oauth2.Token{AccessToken: "not a key"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ServiceAccountClient(t.Context(), path, Scopes...); err == nil {
		t.Error("ServiceAccountClient() with a token file instead of a key error = nil")
	}
}
