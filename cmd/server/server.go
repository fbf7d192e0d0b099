package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/rahul4469/ct-referral-assistant/internal/config"
	"github.com/rahul4469/ct-referral-assistant/internal/controllers"
	"github.com/rahul4469/ct-referral-assistant/internal/crypto"
	"github.com/rahul4469/ct-referral-assistant/internal/middleware"
	"github.com/rahul4469/ct-referral-assistant/internal/models"
	"github.com/rahul4469/ct-referral-assistant/internal/referral"
	"github.com/rahul4469/ct-referral-assistant/internal/services"
	"github.com/rahul4469/ct-referral-assistant/internal/storage"
	"github.com/rahul4469/ct-referral-assistant/internal/views"
	"github.com/rahul4469/ct-referral-assistant/migrations"
	"github.com/rahul4469/ct-referral-assistant/templates"
)

// server holds the wired dependencies of the HTTP application.
type server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *models.Database
	sessions *middleware.SessionMiddleware
	analyze  *controllers.AnalyzeController
	health   *controllers.HealthController
}

// backend is one inference platform: what analyses, what transcribes and
// where staged files are pushed.
type backend struct {
	analyzer    services.Analyzer
	transcriber services.Transcriber
	uploader    services.Uploader
	pinger      services.Pinger
}

func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	s := &server{cfg: cfg, logger: logger}

	// Setup the snapshot store ---------------
	store, err := s.newSnapshotStore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Setup Services ---------------
	be, err := newBackend(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	composer := referral.NewComposer(cfg.Referral.Physician, cfg.Referral.Clinic)
	pipeline := services.NewPipeline(
		services.NewStager(be.uploader),
		be.transcriber,
		be.analyzer,
		composer,
		services.PipelineOptions{
			Marker:          cfg.Referral.Marker,
			HospitalKeyword: cfg.Referral.HospitalKeyword,
		},
		logger,
	)

	// Setup Controllers ---------------
	views.TemplateFS = templates.FS
	page, err := views.ParseFS("pages/analyze.gohtml")
	if err != nil {
		s.Close()
		return nil, err
	}

	status := controllers.NewPlatformStatusChecker(cfg.Platform.Backend, be.pinger, time.Minute)
	s.analyze = controllers.NewAnalyzeController(
		pipeline,
		store,
		status,
		controllers.ClinicProfile{
			Clinic:           cfg.Referral.Clinic,
			Physician:        cfg.Referral.Physician,
			DefaultPatientID: cfg.Referral.DefaultPatientID,
		},
		controllers.AnalyzeTemplates{Page: page},
		controllers.AnalyzeOptions{
			MaxUploadMB: cfg.Server.MaxUploadMB,
			Development: cfg.IsDevelopment(),
		},
		logger,
	)

	checks := []controllers.HealthCheck{
		{Name: "platform", Check: be.pinger.Ping},
	}
	if s.db != nil {
		checks = append(checks, controllers.HealthCheck{Name: "database", Critical: true, Check: s.db.Health})
	}
	s.health = controllers.NewHealthController(checks...)

	s.sessions = middleware.NewSessionMiddleware(
		cfg.Security.SessionCookieName,
		cfg.Security.SessionTTL,
		cfg.Security.SecureCookies,
	)
	return s, nil
}

// newSnapshotStore keeps snapshots in memory unless DATABASE_URL is set.
func (s *server) newSnapshotStore(ctx context.Context) (models.SnapshotStore, error) {
	if !s.cfg.UsesDatabase() {
		s.logger.Info("using in-memory snapshot store")
		return models.NewMemoryStore(s.cfg.Security.SessionTTL), nil
	}

	s.logger.Info("connecting to database")
	db, err := models.NewDatabase(ctx, models.DefaultDatabaseConfig(s.cfg.Database.URL))
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := db.MigrateFS(migrations.FS, "."); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	enc, err := crypto.NewEncryptorFromSecret(s.cfg.Security.SnapshotSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot encryptor: %w", err)
	}

	store := models.NewPostgresStore(db.Pool, enc, s.cfg.Security.SessionTTL)
	go purgeExpired(ctx, store, s.cfg.Security.SessionTTL/4, s.logger)

	s.logger.Info("using postgres snapshot store")
	return store, nil
}

func purgeExpired(ctx context.Context, store *models.PostgresStore, every time.Duration, logger *slog.Logger) {
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("failed to purge expired snapshots", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired snapshots", "count", n)
			}
		}
	}
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Platform.Backend {
	case config.BackendOpenAI:
		client, err := services.NewOpenAIClient(services.OpenAIConfig{
			APIKey:          cfg.OpenAI.APIKey,
			BaseURL:         cfg.OpenAI.BaseURL,
			VisionModel:     cfg.OpenAI.VisionModel,
			TranscribeModel: cfg.OpenAI.TranscribeModel,
			Marker:          cfg.Referral.Marker,
		})
		if err != nil {
			return backend{}, fmt.Errorf("openai backend: %w", err)
		}

		var uploader services.Uploader = services.InlineUploader{MaxBytes: cfg.Server.MaxUploadMB << 20}
		if cfg.Storage.Bucket != "" {
			r2, err := storage.NewR2Client(ctx, storage.Config(cfg.Storage))
			if err != nil {
				return backend{}, fmt.Errorf("object storage: %w", err)
			}
			uploader = r2
			logger.Info("staging uploads to object storage", "bucket", cfg.Storage.Bucket)
		}
		return backend{analyzer: client, transcriber: client, uploader: uploader, pinger: client}, nil

	default:
		client, err := services.NewJamAIClient(services.JamAIConfig{
			BaseURL:               cfg.Platform.BaseURL,
			ProjectID:             cfg.Platform.ProjectID,
			Token:                 cfg.Platform.Token,
			Timeout:               cfg.Platform.Timeout,
			CTTable:               cfg.Platform.CTTable,
			ImageColumn:           cfg.Platform.ImageColumn,
			ContextColumn:         cfg.Platform.ContextColumn,
			FindingsColumn:        cfg.Platform.FindingsColumn,
			DiagnosisColumn:       cfg.Platform.DiagnosisColumn,
			SOPColumn:             cfg.Platform.SOPColumn,
			AudioTable:            cfg.Platform.AudioTable,
			AudioInputColumn:      cfg.Platform.AudioInputColumn,
			AudioTranscriptColumn: cfg.Platform.AudioTranscriptColumn,
		})
		if err != nil {
			return backend{}, fmt.Errorf("jamai backend: %w", err)
		}
		return backend{analyzer: client, transcriber: client, uploader: client, pinger: client}, nil
	}
}

func (s *server) routes() http.Handler {
	csrfMw := csrf.Protect(
		[]byte(s.cfg.Security.CSRFKey),
		csrf.Secure(s.cfg.Security.SecureCookies),
		csrf.Path("/"),
		csrf.TrustedOrigins(s.cfg.Security.TrustedOrigins),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health.HealthCheck)

	// ---- Browser routes ----
	r.Group(func(r chi.Router) {
		// ahead of csrf, which reads form values
		r.Use(middleware.LimitUpload(s.cfg.Server.MaxUploadMB))
		if !s.cfg.Security.SecureCookies {
			r.Use(plaintextCSRF)
		}
		r.Use(csrfMw)
		r.Use(s.sessions.SetSession)
		r.Use(middleware.RequireSession)

		r.Get("/", s.analyze.GetAnalyze)
		r.Post("/analyze", s.analyze.PostAnalyze)
		r.Get("/letters/{lang}", s.analyze.GetLetter)
		r.Post("/reset", s.handleReset)
	})

	return r
}

// plaintextCSRF tells the CSRF origin check that requests without TLS are
// plain HTTP, for local development.
func plaintextCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

// handleReset starts a new patient by dropping the session cookie.
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Close releases the database pool, if any.
func (s *server) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
