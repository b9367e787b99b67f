package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
	"google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"

	"yt-monthly-report/shared/config"
)

// Scopes returns the OAuth scopes a report run needs. The monetary scope is only requested
// when revenue is wanted.
func Scopes(cfg *config.YouTubeConfig) []string {
	scopes := []string{
		youtube.YoutubeReadonlyScope,
		youtubeanalytics.YtAnalyticsReadonlyScope,
		sheets.SpreadsheetsScope,
	}
	if !cfg.SkipRevenue {
		scopes = append(scopes, youtubeanalytics.YtAnalyticsMonetaryReadonlyScope)
	}
	return scopes
}

// OAuthConfig builds the client configuration from a downloaded client-secrets file when one
// is configured, otherwise from the client ID and secret.
func OAuthConfig(cfg *config.YouTubeConfig) (*oauth2.Config, error) {
	scopes := Scopes(cfg)

	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read credentials file %s", cfg.CredentialsFile)
		}
		oauthConfig, err := google.ConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse credentials file %s", cfg.CredentialsFile)
		}
		return oauthConfig, nil
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}, nil
}

// NewHTTPClient returns an authenticated client shared by the YouTube and Sheets services.
// Refreshed tokens are written back to the token file.
func NewHTTPClient(ctx context.Context, cfg *config.YouTubeConfig) (*http.Client, error) {
	oauthConfig, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	token, err := getToken(ctx, oauthConfig, cfg.TokenFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get OAuth token")
	}

	tokenSource := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
	}

	return oauth2.NewClient(ctx, tokenSource), nil
}

// tokenSaver wraps an oauth2.TokenSource to automatically save refreshed tokens.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	mu        sync.Mutex
}

// Token implements oauth2.TokenSource, persisting any refreshed token.
func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	newToken, err := ts.config.TokenSource(context.Background(), ts.token).Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		log.Debug("Token refreshed, saving to file")
		ts.token = newToken
		if err := saveToken(ts.tokenFile, newToken); err != nil {
			log.Warnf("Failed to save refreshed token: %v", err)
		}
	}

	return newToken, nil
}

// getToken loads the cached token, keeping it if it can be refreshed, and otherwise runs the
// device authorization flow.
func getToken(ctx context.Context, config *oauth2.Config, tokenFile string) (*oauth2.Token, error) {
	tok, err := tokenFromFile(tokenFile)
	if err == nil {
		if tok.RefreshToken != "" {
			log.Debugf("Loaded token from file (expires: %v)", tok.Expiry)
			return tok, nil
		}
		if tok.Valid() {
			return tok, nil
		}
	} else if !os.IsNotExist(err) {
		log.Warnf("Ignoring unreadable token file %s: %v", tokenFile, err)
	}

	log.Info("Getting new token from web...")
	tok, err = getTokenWithDeviceFlow(ctx, config)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			log.Errorf("Device authorization response failed (%s): %s", retrieveErr.Response.Status, strings.TrimSpace(string(retrieveErr.Body)))
		}
		return nil, errors.Wrap(err, "device authorization failed; ensure the OAuth client is of type 'TVs and Limited Input devices' and the YouTube Data, YouTube Analytics and Sheets APIs are enabled")
	}

	if err := saveToken(tokenFile, tok); err != nil {
		log.Warnf("Failed to save token: %v", err)
	}
	return tok, nil
}

func getTokenWithDeviceFlow(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	resp, err := config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, errors.Wrap(err, "unable to start device authorization")
	}

	line := strings.Repeat("=", 80)
	log.Info(line)
	log.Info("GOOGLE DEVICE AUTHORIZATION REQUIRED")
	log.Infof("1. Visit %s in your browser (any device works).", resp.VerificationURI)
	log.Infof("2. Enter this code when prompted: %s", resp.UserCode)
	if completeURL := strings.TrimSpace(resp.VerificationURIComplete); completeURL != "" {
		log.Infof("   Or open directly: %s", completeURL)
	}
	log.Info("Waiting for authorization to complete... (Ctrl+C to cancel)")
	log.Info(line)

	tok, err := config.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, errors.Wrap(err, "device authorization did not complete")
	}

	log.Info("Authorization successful")
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrap(err, "unable to create token directory")
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "unable to cache oauth token")
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return errors.Wrap(err, "failed to encode oauth token")
	}
	log.Debugf("Token saved to: %s", path)
	return nil
}
