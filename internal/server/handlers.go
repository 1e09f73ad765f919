package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/champbox/internal/models"
	"github.com/desertthunder/champbox/internal/shared"
)

const (
	msgValidationFailed = "Champion not found or API request failed."
	msgFetchFailed      = "Error fetching champion data."
	msgNoPendingFlow    = "No pending authorization flow."
	msgUploadFailed     = "Failed to upload champion image."
	msgAuthDenied       = "Dropbox authorization was denied."
	msgInvalidRequest   = "invalid request"

	runsRoute        = "/runs"
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Pipeline is the upload flow driven by [FlowHandler] (tasks.Pipeline).
type Pipeline interface {
	Start(ctx context.Context, subject string) (authorizeURL string, err error)
	Resume(ctx context.Context, state, code string) (location string, err error)
	Deny(ctx context.Context, state, reason string) error
}

// FlowHandler serves the single entry point of the upload flow.
//
// The same path receives both the initial ?championName= request and the OAuth callback
// (?code=&state= or ?error=&state=).
type FlowHandler struct {
	pipeline Pipeline
	logger   *log.Logger
	routes   []string
}

// NewFlowHandler creates a [FlowHandler] around pipeline served on "/" and on each of paths.
//
// paths usually holds the path of the OAuth redirect URI (see [CallbackPath]).
func NewFlowHandler(pipeline Pipeline, logger *log.Logger, paths ...string) *FlowHandler {
	routes := []string{"/"}
	for _, path := range paths {
		if path != "" && !slices.Contains(routes, path) {
			routes = append(routes, path)
		}
	}
	return &FlowHandler{pipeline: pipeline, logger: logger, routes: routes}
}

// CallbackPath returns the path component of redirectURI, "/" when it has none.
//
// The provider sends the browser back to that path, so it must be routed to the [FlowHandler].
func CallbackPath(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: redirect_uri %q: %v", shared.ErrInvalidConfig, redirectURI, err)
	}

	path := u.Path
	if path == "" {
		return "/", nil
	}
	if strings.ContainsAny(path, "{} ") {
		return "", fmt.Errorf("%w: redirect_uri path %q is not a plain path", shared.ErrInvalidConfig, path)
	}
	if path == runsRoute {
		return "", fmt.Errorf("%w: redirect_uri path %q is reserved", shared.ErrInvalidConfig, path)
	}
	return path, nil
}

func (h *FlowHandler) Routes() []string { return h.routes }
func (h *FlowHandler) Method() string   { return http.MethodGet }

// ServeHTTP dispatches on the query: championName starts a flow, code resumes one, error ends one.
func (h *FlowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	switch {
	case query.Has("championName"):
		h.start(w, r, query.Get("championName"))
	case query.Has("error"):
		h.deny(w, r, query.Get("state"), query.Get("error"))
	case query.Has("code"):
		h.resume(w, r, query.Get("state"), query.Get("code"))
	default:
		h.logger.Warn("invalid request", "query", r.URL.RawQuery)
		writePlain(w, http.StatusBadRequest, msgInvalidRequest)
	}
}

func (h *FlowHandler) start(w http.ResponseWriter, r *http.Request, subject string) {
	authURL, err := h.pipeline.Start(r.Context(), subject)
	switch {
	case errors.Is(err, shared.ErrTransport):
		writePlain(w, http.StatusOK, msgFetchFailed)
		return
	case err != nil:
		writePlain(w, http.StatusOK, msgValidationFailed)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *FlowHandler) resume(w http.ResponseWriter, r *http.Request, state, code string) {
	location, err := h.pipeline.Resume(r.Context(), state, code)
	switch {
	case errors.Is(err, shared.ErrNoPendingFlow):
		writePlain(w, http.StatusBadRequest, msgNoPendingFlow)
	case err != nil:
		writePlain(w, http.StatusBadGateway, msgUploadFailed)
	default:
		http.Redirect(w, r, location, http.StatusFound)
	}
}

func (h *FlowHandler) deny(w http.ResponseWriter, r *http.Request, state, reason string) {
	err := h.pipeline.Deny(r.Context(), state, reason)
	if errors.Is(err, shared.ErrNoPendingFlow) {
		writePlain(w, http.StatusBadRequest, msgNoPendingFlow)
		return
	}
	writePlain(w, http.StatusForbidden, msgAuthDenied)
}

// RunLister returns the most recent pipeline runs (repositories.RunRepository).
type RunLister interface {
	Recent(limit int) ([]*models.Run, error)
}

// RunsHandler serves the run history as JSON.
type RunsHandler struct {
	runs   RunLister
	logger *log.Logger
}

// NewRunsHandler creates a [RunsHandler] reading from runs.
func NewRunsHandler(runs RunLister, logger *log.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, logger: logger}
}

func (h *RunsHandler) Routes() []string { return []string{runsRoute} }
func (h *RunsHandler) Method() string   { return http.MethodGet }

// ServeHTTP writes up to ?limit= runs (default 20, max 100), newest first.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writePlain(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.Recent(limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writePlain(w, http.StatusInternalServerError, "Failed to list runs.")
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{"runs": runs}); err != nil {
		h.logger.Error("failed to encode runs", "error", err)
	}
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}
