// Package googleauth authorizes HTTP clients for the Google APIs the tool calls
package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested by the user sign-in: upload to Drive and send mail as the user.
// One token covers both so that upload --notify signs in only once.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/gmail.send",
}

// Config holds the configuration for OAuth 2.0 authentication
type Config struct {
	CredentialsFile string    // Path to OAuth client credentials JSON
	TokenFile       string    // Path to store/load token
	CallbackAddr    string    // Local listener for the redirect, default 127.0.0.1:8085
	Output          io.Writer // Where sign-in instructions are printed
}

// UserClient returns an HTTP client acting as the signed-in user. A saved
// token is reused and refreshed; otherwise the browser sign-in runs.
func UserClient(ctx context.Context, cfg Config) (*http.Client, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read OAuth credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth credentials: %w", err)
	}

	token, err := getToken(ctx, config, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to get OAuth token: %w", err)
	}

	return config.Client(ctx, token), nil
}

// ServiceAccountClient returns an HTTP client authenticated with a service account key
func ServiceAccountClient(ctx context.Context, credentialsPath string, scopes ...string) (*http.Client, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return config.Client(ctx), nil
}

// getToken retrieves a token from file, refreshing it if needed, or runs the browser flow
func getToken(ctx context.Context, config *oauth2.Config, cfg Config) (*oauth2.Token, error) {
	if token, err := loadToken(cfg.TokenFile); err == nil {
		fresh, err := config.TokenSource(ctx, token).Token()
		if err == nil {
			if fresh.AccessToken != token.AccessToken {
				saveToken(cfg.TokenFile, fresh)
			}
			return fresh, nil
		}
	}

	return getTokenFromWeb(ctx, config, cfg)
}

// loadToken loads a token from a file
func loadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// saveToken saves a token to a file readable only by the user
func saveToken(file string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// getTokenFromWeb runs the installed-app flow with a one-shot local callback server
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, cfg Config) (*oauth2.Token, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	addr := cfg.CallbackAddr
	if addr == "" {
		addr = "127.0.0.1:8085"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen for OAuth callback: %w", err)
	}
	config.RedirectURL = "http://" + ln.Addr().String() + "/callback"

	state, err := randomState()
	if err != nil {
		ln.Close()
		return nil, err
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(state, codeChan, errChan))
	server := &http.Server{Handler: mux}

	go func() {
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Opening browser for Google authentication...")
	fmt.Fprintln(out, "If the browser doesn't open, please visit this URL:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out)
	openBrowser(authURL)

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange auth code: %w", err)
	}

	if err := saveToken(cfg.TokenFile, token); err != nil {
		fmt.Fprintf(out, "Warning: couldn't save token: %v\n", err)
	}

	fmt.Fprintln(out, "Authentication successful!")
	return token, nil
}

func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			select {
			case errChan <- fmt.Errorf("no code in callback: %s", q.Get("error")):
			default:
			}
			http.Error(w, "no authorization code received", http.StatusBadRequest)
			return
		}
		select {
		case codeChan <- code:
		default:
		}
		fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("unable to generate OAuth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("xdg-open"); err == nil {
			cmd = exec.Command("xdg-open", url)
		} else if _, err := exec.LookPath("wslview"); err == nil {
			cmd = exec.Command("wslview", url)
		}
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}

	if cmd != nil {
		cmd.Start()
	}
}
