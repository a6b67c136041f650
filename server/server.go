// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package server exposes recordings and renders over HTTP.
package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"golang.org/x/net/websocket"

	"github.com/maruel/thermvid/config"
	"github.com/maruel/thermvid/recording"
	"github.com/maruel/thermvid/render"
	"github.com/maruel/thermvid/report"
	"github.com/maruel/thermvid/thermal"
)

// RenderReply is returned by the render endpoints.
type RenderReply struct {
	Job    string `json:"job"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Frames int    `json:"frames"`
}

// Server serves the HTTP API. Create with New.
type Server struct {
	renderer *render.Renderer
	catalog  *report.Catalog
	outDir   string
	settings atomic.Pointer[config.Video]
	feed     *feed
	router   *mux.Router
}

// New returns a Server writing videos under outDir.
func New(r *render.Renderer, c *report.Catalog, outDir string, settings config.Video) *Server {
	s := &Server{renderer: r, catalog: c, outDir: outDir, feed: newFeed(), router: mux.NewRouter()}
	s.SetSettings(settings)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/recordings", s.handleListRecordings).Methods("GET")
	s.router.HandleFunc("/api/v1/recordings/{id}", s.handleGetRecording).Methods("GET")
	s.router.HandleFunc("/api/v1/recordings/{id}/thermal", s.handleThermal).Methods("POST")
	s.router.HandleFunc("/api/v1/recordings/{id}/classic", s.handleClassic).Methods("POST")
	s.router.HandleFunc("/api/v1/renders", s.handleListRenders).Methods("GET")
	s.router.HandleFunc("/api/v1/settings/video", s.handleSettings).Methods("GET")
	s.router.Handle("/stream", websocket.Handler(s.feed.stream))
	s.router.PathPrefix("/results/").Handler(http.StripPrefix("/results/", http.FileServer(http.Dir(outDir))))
	return s
}

// Handler returns the root handler, logging every request.
func (s *Server) Handler() http.Handler {
	return loggingHandler{s.router}
}

// SetSettings replaces the settings used by the next renders.
func (s *Server) SetSettings(v config.Video) {
	s.settings.Store(&v)
}

// Settings returns the current settings.
func (s *Server) Settings() config.Video {
	return *s.settings.Load()
}

// Close disconnects the /stream clients.
func (s *Server) Close() {
	s.feed.close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	entries, err := s.renderer.Store.List()
	if err != nil {
		errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []recording.Entry{}
	}
	returnJSON(w, entries)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	info, err := s.renderer.Store.Inspect(mux.Vars(r)["id"])
	if err != nil {
		errorJSON(w, err, statusFor(err))
		return
	}
	returnJSON(w, info)
}

func (s *Server) handleThermal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	settings := s.Settings()
	dst := filepath.Join(s.outDir, id, "thermal.avi")
	job, err := s.catalog.Begin(id, report.Thermal, dst, &settings)
	if err != nil {
		errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.feed.publish(Event{Job: job.ID, Recording: id, Kind: report.Thermal, State: report.Running})
	res, err := s.renderer.Render(r.Context(), id, settings, dst, func(p render.Progress) {
		s.feed.publish(Event{Job: job.ID, Recording: id, Kind: report.Thermal, Frame: p.Frame, Total: p.Total, State: report.Running})
	})
	frames := 0
	if res != nil {
		frames = res.Frames
	}
	s.finish(job, frames, err)
	if err != nil {
		errorJSON(w, err, statusFor(err))
		return
	}
	returnJSON(w, &RenderReply{Job: job.ID, Path: dst, URL: "/results/" + id + "/thermal.avi", Frames: frames})
}

func (s *Server) handleClassic(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dst := filepath.Join(s.outDir, id, "cam.mp4")
	job, err := s.catalog.Begin(id, report.Classic, dst, nil)
	if err != nil {
		errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.feed.publish(Event{Job: job.ID, Recording: id, Kind: report.Classic, State: report.Running})
	_, err = render.CopyCamera(s.renderer.Store, id, dst)
	s.finish(job, 0, err)
	if err != nil {
		errorJSON(w, err, statusFor(err))
		return
	}
	returnJSON(w, &RenderReply{Job: job.ID, Path: dst, URL: "/results/" + id + "/cam.mp4"})
}

func (s *Server) handleListRenders(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		var err error
		if limit, err = strconv.Atoi(v); err != nil {
			errorJSON(w, errors.New("invalid limit"), http.StatusBadRequest)
			return
		}
	}
	jobs, err := s.catalog.List(limit)
	if err != nil {
		errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*report.Job{}
	}
	returnJSON(w, jobs)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, s.Settings())
}

// finish records the outcome of job in the catalog and on the feed.
func (s *Server) finish(job *report.Job, frames int, err error) {
	e := Event{Job: job.ID, Recording: job.Recording, Kind: job.Kind, Frame: frames, Total: frames, State: report.Done}
	if err != nil {
		e.State = report.Failed
		e.Error = err.Error()
	}
	if err2 := s.catalog.Finish(job.ID, frames, err); err2 != nil {
		e.State = report.Failed
		e.Error = err2.Error()
	}
	s.feed.publish(e)
}

func statusFor(err error) int {
	var serr *recording.StoreReadError
	var verr *config.ValidationError
	switch {
	case errors.As(err, &serr):
		return http.StatusNotFound
	case errors.As(err, &verr), errors.Is(err, thermal.ErrShrink):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
