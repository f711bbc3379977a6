package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"photoshare/internal/apperr"
	"photoshare/internal/auth"
	"photoshare/internal/blob"
	"photoshare/internal/events"
	"photoshare/internal/feed"
	"photoshare/internal/logging"
	"photoshare/internal/metrics"
	"photoshare/internal/models"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store   *models.Store
	Blobs   blob.Store
	Tokens  *auth.Tokens
	Hasher  auth.Hasher
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *logrus.Logger

	// PublicBaseURL roots pagination links, ImageBaseURL roots image_url.
	PublicBaseURL string
	ImageBaseURL  string
	CORSOrigins   []string
	// StorageDir is served under /storage when set.
	StorageDir string
}

type Server struct {
	store    *models.Store
	blobs    blob.Store
	tokens   *auth.Tokens
	hasher   auth.Hasher
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *logrus.Logger
	feed     *feed.Assembler
	validate *validator.Validate

	baseURL    string
	origins    []string
	storageDir string

	handler http.Handler
}

func New(d Deps) *Server {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	s := &Server{
		store:      d.Store,
		blobs:      d.Blobs,
		tokens:     d.Tokens,
		hasher:     d.Hasher,
		events:     d.Events,
		metrics:    d.Metrics,
		log:        d.Logger,
		feed:       feed.NewAssembler(d.Store, d.ImageBaseURL),
		validate:   newValidator(),
		baseURL:    strings.TrimRight(d.PublicBaseURL, "/"),
		origins:    d.CORSOrigins,
		storageDir: d.StorageDir,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.log))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:         300,
	}).Handler)

	r.NotFound(s.wrap(func(w http.ResponseWriter, r *http.Request) error {
		return apperr.NotFoundf("Route")
	}))

	r.Get("/up", s.wrap(s.handleHealth))
	r.Handle("/metrics", s.metrics.Handler())
	if s.storageDir != "" {
		r.Handle("/storage/*", http.StripPrefix("/storage", http.FileServer(http.Dir(s.storageDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.wrap(s.handleRegister))
		r.Post("/login", s.wrap(s.handleLogin))
		r.Post("/logout", s.requireAuth(s.handleLogout))
		r.Get("/me", s.requireAuth(s.handleMe))

		r.Get("/posts", s.wrap(s.handleListPosts))
		r.Post("/posts", s.requireAuth(s.handleCreatePost))
		r.Get("/posts/{id}", s.wrap(s.handleGetPost))
		r.Put("/posts/{id}", s.requireAuth(s.handleUpdatePost))
		r.Delete("/posts/{id}", s.requireAuth(s.handleDeletePost))
		r.Post("/posts/{id}/like", s.requireAuth(s.handleToggleLike))
		r.Get("/posts/{id}/comments", s.wrap(s.handleListComments))
		r.Post("/posts/{id}/comments", s.requireAuth(s.handleCreateComment))
		r.Delete("/comments/{id}", s.requireAuth(s.handleDeleteComment))
		r.Get("/users/{id}/posts", s.wrap(s.handleUserPosts))
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Ping(r.Context()); err != nil {
		return apperr.Wrap(err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}
