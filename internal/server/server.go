// Package server exposes the signing and media management endpoints the
// upload client talks to.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/gostones/mediavault/internal/config"
	"github.com/gostones/mediavault/internal/store"
	"github.com/gostones/mediavault/internal/types"
)

// maxPartNumber is the S3 limit on parts per multipart upload.
const maxPartNumber = 10000

type Server struct {
	cfg     *config.Config
	store   store.ObjectStore
	log     zerolog.Logger
	metrics *metrics
	gather  prometheus.Gatherer
}

func New(cfg *config.Config, st store.ObjectStore, log zerolog.Logger, reg *prometheus.Registry) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		log:     log,
		metrics: newMetrics(reg),
		gather:  reg,
	}
}

// Router builds the HTTP routes. Multipart routes answer 400 while the
// server side multipart flag is off.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(s.access))

	api := r.PathPrefix("/api/media").Subrouter()
	api.HandleFunc("/presign", s.presign).Methods(http.MethodPost)
	api.HandleFunc("/list", s.list).Methods(http.MethodGet)
	api.HandleFunc("/delete", s.delete).Methods(http.MethodDelete)

	mp := api.PathPrefix("/multipart").Subrouter()
	mp.Use(s.requireMultipart)
	mp.HandleFunc("/init", s.initMultipart).Methods(http.MethodPost)
	mp.HandleFunc("/sign-part", s.signPart).Methods(http.MethodPost)
	mp.HandleFunc("/complete", s.completeMultipart).Methods(http.MethodPost)
	mp.HandleFunc("/abort", s.abortMultipart).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return r
}

func (s *Server) access(r *http.Request, status, size int, d time.Duration) {
	route := r.URL.Path
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	s.metrics.observe(route, r.Method, status, d)

	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("route", route).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

func (s *Server) requireMultipart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.ServerMultipart {
			writeError(w, http.StatusBadRequest, "Multipart upload is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &types.ErrorResponse{Message: message})
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
