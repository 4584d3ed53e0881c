// Package relay serves the stateless CORS relays the browser front end
// depends on: a reverse proxy toward the whitelisted provider APIs and a
// video thumbnail fetcher.
package relay

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/yoanbernabeu/nanothumbnail/internal/security"
	"github.com/yoanbernabeu/nanothumbnail/internal/youtube"
)

// forwardedHeaders are the only request headers relayed upstream.
var forwardedHeaders = []string{"Authorization", "Content-Type", "x-goog-api-key"}

type Server struct {
	httpClient *http.Client
	thumbnails *youtube.Fetcher
	log        *logrus.Logger
	validate   func(string) error
}

func NewServer(log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		// Long generations hold the proxied request open; no client
		// timeout here, the upstream decides.
		httpClient: &http.Client{},
		thumbnails: youtube.NewFetcher(),
		log:        log,
		validate:   security.ValidateProxyTarget,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-goog-api-key"},
	}))

	r.HandleFunc("/proxy", s.handleProxy)
	r.Get("/thumbnail", s.handleThumbnail)
	return r
}

type errResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	targetURL := r.URL.Query().Get("url")
	if targetURL == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: "Missing url parameter"})
		return
	}

	if err := s.validate(targetURL); err != nil {
		s.log.WithFields(logrus.Fields{"target": targetURL, "error": err}).Warn("proxy target rejected")
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, errResponse{Error: "Forbidden: target URL is not allowed"})
		return
	}

	var body io.Reader
	if r.Method != http.MethodGet {
		body = r.Body
	}

	upstream, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, body)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: "Invalid proxy request", Details: err.Error()})
		return
	}
	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			upstream.Header.Set(h, v)
		}
	}

	start := time.Now()
	resp, err := s.httpClient.Do(upstream)
	if err != nil {
		s.log.WithFields(logrus.Fields{"target": targetURL, "error": err}).Error("proxy request failed")
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errResponse{Error: "Proxy request failed", Details: err.Error()})
		return
	}
	defer resp.Body.Close()

	s.log.WithFields(logrus.Fields{
		"target":   targetURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Info("proxied request")

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.WithError(err).Warn("failed to relay response body")
	}
}

type thumbnailResponse struct {
	Base64 string `json:"base64"`
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if !youtube.ValidVideoID(videoID) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResponse{Error: "Missing or invalid videoId parameter"})
		return
	}

	dataURI, err := s.thumbnails.Fetch(r.Context(), videoID)
	if err != nil {
		s.log.WithFields(logrus.Fields{"videoId": videoID, "error": err}).Warn("thumbnail lookup failed")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errResponse{Error: "Thumbnail not found"})
		return
	}

	render.JSON(w, r, thumbnailResponse{Base64: dataURI})
}
