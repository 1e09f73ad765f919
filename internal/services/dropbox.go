// Dropbox implementation of the authorization + upload half of the flow
//
// API reference: https://www.dropbox.com/developers/documentation/http/documentation
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf16"

	"github.com/desertthunder/champbox/internal/shared"
	"golang.org/x/oauth2"
)

const (
	dropboxAuthURL    = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL   = "https://api.dropboxapi.com/oauth2/token"
	dropboxContentURL = "https://content.dropboxapi.com"
	dropboxViewerURL  = "https://www.dropbox.com/home?preview=%s"
)

// UploadArg is the JSON document sent in the Dropbox-API-Arg header of an upload.
type UploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

// UploadResult describes a finished upload.
type UploadResult struct {
	Location string // Viewer URL for the uploaded file
	Response []byte // Raw response body, kept for logging
}

// DropboxService runs the OAuth2 authorization-code exchange and uploads files with the resulting token.
type DropboxService struct {
	config     *oauth2.Config
	contentURL string
	viewerURL  string
	httpClient *http.Client
}

// NewDropboxService creates a Dropbox client from configuration.
//
// Endpoint fields left empty use the public Dropbox endpoints.
func NewDropboxService(cfg shared.DropboxConfig, client *http.Client) (*DropboxService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing dropbox client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing dropbox client_secret", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}

	authURL, tokenURL := cfg.AuthorizeURL, cfg.TokenURL
	if authURL == "" {
		authURL = dropboxAuthURL
	}
	if tokenURL == "" {
		tokenURL = dropboxTokenURL
	}

	contentURL := cfg.ContentURL
	if contentURL == "" {
		contentURL = dropboxContentURL
	}

	viewerURL := cfg.ViewerURL
	if viewerURL == "" {
		viewerURL = dropboxViewerURL
	}

	return &DropboxService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		contentURL: strings.TrimRight(contentURL, "/"),
		viewerURL:  viewerURL,
		httpClient: client,
	}, nil
}

// AuthCodeURL returns the authorize URL the browser is redirected to.
//
// Offline access is requested so Dropbox issues a long-lived refresh token alongside the access token.
func (d *DropboxService) AuthCodeURL(state string) string {
	return d.config.AuthCodeURL(state, oauth2.SetAuthURLParam("token_access_type", "offline"))
}

// ExchangeCode trades an authorization code for an access token.
//
// Non-2xx answers and failed round trips are [shared.ErrTransport]. A 2xx body that is not JSON or lacks
// access_token is [shared.ErrTokenParse].
func (d *DropboxService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)

	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		switch {
		case errors.As(err, &retrieveErr):
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, fmt.Errorf("%w: token endpoint returned status %d", shared.ErrTransport, status)
		case errors.As(err, &urlErr):
			return nil, transportError("token exchange", err)
		default:
			return nil, fmt.Errorf("%w: %v", shared.ErrTokenParse, err)
		}
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: response missing access_token", shared.ErrTokenParse)
	}

	return token, nil
}

// UploadImage uploads data to /<filename> in the user's Dropbox with token as bearer credentials.
//
// Name collisions are resolved by Dropbox through autorename. The response body is returned unparsed.
func (d *DropboxService) UploadImage(ctx context.Context, data []byte, filename string, token *oauth2.Token) (*UploadResult, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: upload requires an access token", shared.ErrMissingCredentials)
	}

	arg, err := uploadArgHeader(UploadArg{
		Path:       "/" + filename,
		Mode:       "add",
		Autorename: true,
		Mute:       false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.contentURL+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", arg)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError("upload", err)
	}

	body, err := readBody(resp, "upload")
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		Location: d.ViewerURL(filename),
		Response: body,
	}, nil
}

// ViewerURL returns the Dropbox web preview URL for filename.
func (d *DropboxService) ViewerURL(filename string) string {
	return fmt.Sprintf(d.viewerURL, url.QueryEscape(filename))
}

// uploadArgHeader encodes arg for use as an HTTP header value.
//
// Dropbox requires characters outside ASCII to be escaped as \uXXXX inside the header.
func uploadArgHeader(arg UploadArg) (string, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload arg: %w", err)
	}

	var b strings.Builder
	for _, r := range string(raw) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}
