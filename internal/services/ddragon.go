// Data Dragon implementation of the champion lookups
//
// Endpoints documented at https://developer.riotgames.com/docs/lol#data-dragon
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/champbox/internal/shared"
)

const (
	ddragonHost    = "https://ddragon.leagueoflegends.com"
	ddragonVersion = "12.5.1"
)

// DDragonService validates champion names and downloads loading-screen art from the Data Dragon CDN.
type DDragonService struct {
	host       string
	version    string
	httpClient *http.Client
}

// NewDDragonService creates a Data Dragon client. Empty host or version fall back to the public CDN defaults.
func NewDDragonService(host, version string, client *http.Client) *DDragonService {
	if host == "" {
		host = ddragonHost
	}
	if version == "" {
		version = ddragonVersion
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &DDragonService{
		host:       strings.TrimRight(host, "/"),
		version:    version,
		httpClient: client,
	}
}

// ChampionURL returns the champion data document URL for name.
func (d *DDragonService) ChampionURL(name string) string {
	return fmt.Sprintf("%s/cdn/%s/data/en_US/champion/%s.json", d.host, d.version, url.PathEscape(name))
}

// ImageURL returns the first loading-screen skin URL for name.
func (d *DDragonService) ImageURL(name string) string {
	return fmt.Sprintf("%s/cdn/img/champion/loading/%s_0.jpg", d.host, url.PathEscape(name))
}

// ValidateChampion succeeds iff Data Dragon answers the champion lookup with a 2xx status.
//
// A non-2xx answer is [shared.ErrValidationFailed]; a failed round trip is [shared.ErrTransport].
func (d *DDragonService) ValidateChampion(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty champion name", shared.ErrValidationFailed)
	}

	resp, err := d.get(ctx, d.ChampionURL(name))
	if err != nil {
		return transportError("champion lookup", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s (status %d)", shared.ErrValidationFailed, name, resp.StatusCode)
	}

	return nil
}

// DownloadImage fetches the loading-screen art for name.
//
// The status is checked again here even though the champion was validated first:
// the image can be missing for a champion whose data exists.
func (d *DDragonService) DownloadImage(ctx context.Context, name string) ([]byte, error) {
	resp, err := d.get(ctx, d.ImageURL(name))
	if err != nil {
		return nil, transportError("image download", err)
	}

	data, err := readBody(resp, "image download")
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (d *DDragonService) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return d.httpClient.Do(req)
}
