// Command gdrive-auth runs the OAuth consent flow once and prints the
// refresh token that STORAGE_PROVIDER=gdrive needs in GDRIVE_REFRESH_TOKEN.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"montage/internal/config"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
)

const consentTimeout = 3 * time.Minute

func main() {
	log := logger.New(logger.Config{Level: "info", Format: "text", ServiceName: "gdrive-auth"})
	ctx := context.Background()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.LogFatal("failed to open callback listener", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	conf := &oauth2.Config{
		ClientID:     config.MustEnv("GDRIVE_CLIENT_ID"),
		ClientSecret: config.MustEnv("GDRIVE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		// drive.file only covers files this app creates, which is all the
		// storage adapter touches.
		Scopes:      []string{drive.DriveFileScope},
		RedirectURL: redirectURL,
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code, err := callbackCode(r, state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			errCh <- err
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this window and return to the terminal.")
		codeCh <- code
	})

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()

	// prompt=consent makes Google return a refresh token even on re-auth.
	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	fmt.Printf("\nOpen this URL in your browser:\n\n%s\n\nWaiting for the callback on %s\n", authURL, redirectURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		_ = srv.Close()
		log.LogFatal("authorization failed", err)
	case <-time.After(consentTimeout):
		_ = srv.Close()
		log.LogFatal("authorization failed", errors.Timeout("gdrive-auth.consent"))
	}
	_ = srv.Close()

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.LogFatal("token exchange failed", err)
	}

	if strings.TrimSpace(tok.RefreshToken) == "" {
		fmt.Println("\nNo refresh_token was returned.")
		fmt.Println("Revoke the app's access at https://myaccount.google.com/permissions and run this command again.")
		return
	}

	fmt.Printf("\nGDRIVE_REFRESH_TOKEN=%s\n", tok.RefreshToken)
}

// callbackCode extracts the authorization code from the OAuth redirect.
func callbackCode(r *http.Request, state string) (string, error) {
	q := r.URL.Query()
	if q.Get("state") != state {
		return "", errors.Validation("invalid state")
	}
	if e := q.Get("error"); e != "" {
		return "", errors.Newf(errors.CodeBadRequest, "auth error: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.ValidationField("code", "missing code")
	}
	return code, nil
}
