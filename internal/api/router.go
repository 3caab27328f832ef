// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/middleware"
	"github.com/tomtom215/jellygate/web"
)

// Router wires the Handler, the middleware factories and the embedded UI
// into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	access        *middleware.AccessRecorder
	templates     *template.Template
	static        http.Handler
}

type pageKind int

const (
	pageIndex pageKind = iota
	pageAdmin
)

// PageData is passed to the page templates.
type PageData struct {
	Title        string
	Version      string
	TrialEnabled bool
	TrialDays    int
}

// NewRouter creates a router. access may be nil, which disables page-view
// recording.
func NewRouter(handler *Handler, chiMw *ChiMiddleware, access *middleware.AccessRecorder) (*Router, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
		access:        access,
		templates:     tmpl,
		static:        http.FileServerFS(web.Static()),
	}, nil
}

// page renders one of the embedded HTML pages. The signup page shows the
// current trial length, so settings are read per request.
func (router *Router) page(kind pageKind) http.HandlerFunc {
	name := web.IndexTemplate
	if kind == pageAdmin {
		name = web.AdminTemplate
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := PageData{Title: "Jellyfin", Version: Version}
		if kind == pageIndex {
			if settings, err := router.handler.repo.GetTrialSettings(r.Context()); err == nil {
				data.TrialEnabled = settings.Enabled
				data.TrialDays = settings.DurationDays
			} else {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("Trial settings unavailable for signup page")
			}
		}

		var buf bytes.Buffer
		if err := router.templates.ExecuteTemplate(&buf, name, data); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render page")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		//nolint:errcheck // client went away
		w.Write(buf.Bytes())
	}
}
