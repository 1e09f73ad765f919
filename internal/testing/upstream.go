package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Upload is one request received by the fake upload endpoint.
type Upload struct {
	Token string // Bearer token from the Authorization header
	Arg   string // Raw Dropbox-API-Arg header
	Body  []byte
}

// FakeUpstream serves the Data Dragon and Dropbox endpoints the upload flow calls, from a single
// [httptest.Server].
//
// Champions lists the valid champion names and their loading-screen bytes. Codes maps authorization codes
// to the access tokens the token endpoint hands out. Set the Fail* fields to force error statuses.
type FakeUpstream struct {
	*httptest.Server

	Version   string
	Champions map[string][]byte
	Codes     map[string]string

	FailImage    bool
	FailUpload   bool
	MalformToken bool

	mu             sync.Mutex
	validateCalls  int
	imageCalls     int
	exchangeCalls  int
	uploads        []Upload
	exchangedCodes []string
}

// NewFakeUpstream starts a [FakeUpstream] that is closed when the test ends.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()

	f := &FakeUpstream{
		Version:   "12.5.1",
		Champions: map[string][]byte{},
		Codes:     map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cdn/{version}/data/en_US/champion/{file}", f.champion)
	mux.HandleFunc("GET /cdn/img/champion/loading/{file}", f.image)
	mux.HandleFunc("GET /oauth2/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /oauth2/token", f.token)
	mux.HandleFunc("POST /2/files/upload", f.upload)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)

	return f
}

func (f *FakeUpstream) champion(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.validateCalls++
	f.mu.Unlock()

	name, ok := strings.CutSuffix(r.PathValue("file"), ".json")
	if _, known := f.Champions[name]; !ok || !known || r.PathValue("version") != f.Version {
		http.Error(w, "AccessDenied", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"type":"champion","version":%q,"data":{%q:{"id":%q}}}`, f.Version, name, name)
}

func (f *FakeUpstream) image(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.imageCalls++
	f.mu.Unlock()

	name, ok := strings.CutSuffix(r.PathValue("file"), "_0.jpg")
	data, known := f.Champions[name]
	if !ok || !known || f.FailImage {
		http.Error(w, "AccessDenied", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (f *FakeUpstream) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	code := r.PostForm.Get("code")

	f.mu.Lock()
	f.exchangeCalls++
	f.exchangedCodes = append(f.exchangedCodes, code)
	f.mu.Unlock()

	if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("client_id") == "" {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}

	access, ok := f.Codes[code]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant","error_description":"code doesn't exist or has expired"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if f.MalformToken {
		io.WriteString(w, `{"token_type":"bearer"}`)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": access,
		"token_type":   "bearer",
		"expires_in":   14400,
	})
}

func (f *FakeUpstream) upload(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	f.uploads = append(f.uploads, Upload{Token: token, Arg: r.Header.Get("Dropbox-API-Arg"), Body: body})
	f.mu.Unlock()

	if f.FailUpload || token == "" {
		http.Error(w, `{"error_summary":"invalid_access_token/"}`, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"name":"upload","size":%d}`, len(body))
}

// Calls reports how many validation, image and token requests were received.
func (f *FakeUpstream) Calls() (validate, image, exchange int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateCalls, f.imageCalls, f.exchangeCalls
}

// Uploads returns a copy of the upload requests received so far.
func (f *FakeUpstream) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

// ExchangedCodes returns the authorization codes sent to the token endpoint, in order.
func (f *FakeUpstream) ExchangedCodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exchangedCodes...)
}
