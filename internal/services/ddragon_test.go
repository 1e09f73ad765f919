package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/champbox/internal/shared"
	tu "github.com/desertthunder/champbox/internal/testing"
)

func newDDragonServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/cdn/12.5.1/data/en_US/champion/Ahri.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"Ahri":{"id":"Ahri"}}}`))
	})
	mux.HandleFunc("/cdn/12.5.1/data/en_US/champion/Ghost.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/cdn/img/champion/loading/Ahri_0.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDDragonService(t *testing.T) {
	t.Run("NewDDragonService", func(t *testing.T) {
		t.Run("defaults", func(t *testing.T) {
			srv := NewDDragonService("", "", nil)

			if srv.ChampionURL("Ahri") != "https://ddragon.leagueoflegends.com/cdn/12.5.1/data/en_US/champion/Ahri.json" {
				t.Errorf("unexpected champion URL %s", srv.ChampionURL("Ahri"))
			}
			if srv.ImageURL("Ahri") != "https://ddragon.leagueoflegends.com/cdn/img/champion/loading/Ahri_0.jpg" {
				t.Errorf("unexpected image URL %s", srv.ImageURL("Ahri"))
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected default http client")
			}
		})

		t.Run("trailing slash is trimmed", func(t *testing.T) {
			srv := NewDDragonService("http://cdn.local/", "1.0.0", nil)
			if srv.ImageURL("Ahri") != "http://cdn.local/cdn/img/champion/loading/Ahri_0.jpg" {
				t.Errorf("unexpected image URL %s", srv.ImageURL("Ahri"))
			}
		})

		t.Run("names are path escaped", func(t *testing.T) {
			srv := NewDDragonService("http://cdn.local", "1.0.0", nil)
			if srv.ImageURL("../x") != "http://cdn.local/cdn/img/champion/loading/..%2Fx_0.jpg" {
				t.Errorf("unexpected image URL %s", srv.ImageURL("../x"))
			}
		})
	})

	t.Run("ValidateChampion", func(t *testing.T) {
		ts := newDDragonServer(t)
		srv := NewDDragonService(ts.URL, "12.5.1", ts.Client())

		t.Run("known champion", func(t *testing.T) {
			if err := srv.ValidateChampion(context.Background(), "Ahri"); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("unknown champion", func(t *testing.T) {
			err := srv.ValidateChampion(context.Background(), "NotAChampion")
			if !errors.Is(err, shared.ErrValidationFailed) {
				t.Errorf("expected ErrValidationFailed, got %v", err)
			}
		})

		t.Run("empty name", func(t *testing.T) {
			err := srv.ValidateChampion(context.Background(), "")
			if !errors.Is(err, shared.ErrValidationFailed) {
				t.Errorf("expected ErrValidationFailed, got %v", err)
			}
		})

		t.Run("transport failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			srv := NewDDragonService(ts.URL, "12.5.1", client)

			err := srv.ValidateChampion(context.Background(), "Ahri")
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
		})
	})

	t.Run("DownloadImage", func(t *testing.T) {
		ts := newDDragonServer(t)
		srv := NewDDragonService(ts.URL, "12.5.1", ts.Client())

		t.Run("returns image bytes", func(t *testing.T) {
			data, err := srv.DownloadImage(context.Background(), "Ahri")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !bytes.Equal(data, []byte("jpeg-bytes")) {
				t.Errorf("unexpected body %q", data)
			}
		})

		t.Run("oversized image is rejected instead of truncated", func(t *testing.T) {
			original := maxBodySize
			t.Cleanup(func() { maxBodySize = original })
			maxBodySize = len("jpeg-bytes") - 1

			data, err := srv.DownloadImage(context.Background(), "Ahri")
			if !errors.Is(err, shared.ErrTransport) {
				t.Fatalf("expected ErrTransport, got %v", err)
			}
			if data != nil {
				t.Errorf("expected no data, got %q", data)
			}
			if !strings.Contains(err.Error(), "exceeds") {
				t.Errorf("expected size in error, got %v", err)
			}
		})

		t.Run("image at the size limit is accepted", func(t *testing.T) {
			original := maxBodySize
			t.Cleanup(func() { maxBodySize = original })
			maxBodySize = len("jpeg-bytes")

			data, err := srv.DownloadImage(context.Background(), "Ahri")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !bytes.Equal(data, []byte("jpeg-bytes")) {
				t.Errorf("unexpected body %q", data)
			}
		})

		t.Run("missing image is a transport error", func(t *testing.T) {
			// Ghost validates but has no art
			if err := srv.ValidateChampion(context.Background(), "Ghost"); err != nil {
				t.Fatalf("expected Ghost to validate, got %v", err)
			}

			_, err := srv.DownloadImage(context.Background(), "Ghost")
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
		})

		t.Run("body read failure", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			srv := NewDDragonService(ts.URL, "12.5.1", client)

			_, err := srv.DownloadImage(context.Background(), "Ahri")
			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
		})
	})
}
