package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"github.com/rahul4469/ct-referral-assistant/internal/middleware"
	"github.com/rahul4469/ct-referral-assistant/internal/models"
	"github.com/rahul4469/ct-referral-assistant/internal/services"
	"github.com/rahul4469/ct-referral-assistant/internal/views"
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	audioExtensions = []string{".mp3", ".wav", ".m4a"}
)

// Runner executes one analysis run.
type Runner interface {
	Run(ctx context.Context, req services.Request) (*models.Snapshot, error)
}

// ClinicProfile is shown in the sidebar and used as form defaults.
type ClinicProfile struct {
	Clinic           string
	Physician        string
	DefaultPatientID string
}

// AnalyzeController serves the upload form, the analysis result and the
// letter downloads for the current browser session.
type AnalyzeController struct {
	pipeline    Runner
	snapshots   models.SnapshotStore
	status      *PlatformStatusChecker
	profile     ClinicProfile
	templates   AnalyzeTemplates
	maxUploadMB int64
	development bool
	logger      *slog.Logger
}

// AnalyzeTemplates holds the templates for analysis pages.
type AnalyzeTemplates struct {
	Page *views.Template
}

// AnalyzeOptions carries the request limits and environment flags.
type AnalyzeOptions struct {
	MaxUploadMB int64
	Development bool
}

// NewAnalyzeController creates a new AnalyzeController.
func NewAnalyzeController(
	pipeline Runner,
	snapshots models.SnapshotStore,
	status *PlatformStatusChecker,
	profile ClinicProfile,
	templates AnalyzeTemplates,
	opts AnalyzeOptions,
	logger *slog.Logger,
) *AnalyzeController {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeController{
		pipeline:    pipeline,
		snapshots:   snapshots,
		status:      status,
		profile:     profile,
		templates:   templates,
		maxUploadMB: opts.MaxUploadMB,
		development: opts.Development,
		logger:      logger,
	}
}

// AnalyzePageData holds data for the analysis page template.
type AnalyzePageData struct {
	Clinic      string
	Physician   string
	PatientID   string
	Platform    PlatformStatus
	Snapshot    *models.Snapshot
	ImageAccept string
	AudioAccept string
	MaxUploadMB int64
}

// GetAnalyze renders the upload form together with the latest result of
// this session, if any.
func (c *AnalyzeController) GetAnalyze(w http.ResponseWriter, r *http.Request) {
	data, page := c.pageData(r, "")

	snap, err := c.snapshots.Latest(r.Context(), middleware.CurrentSessionKey(r))
	switch {
	case err == nil:
		page.Snapshot = snap
		page.PatientID = snap.PatientID
	case errors.Is(err, models.ErrSnapshotNotFound):
		// first visit
	default:
		c.logger.ErrorContext(r.Context(), "failed to load snapshot", "error", err)
		data.Warning = "Previous results could not be loaded."
	}

	c.templates.Page.ExecuteHTTP(w, r, data)
}

// PostAnalyze handles the upload form: voice note transcription, CT image
// analysis and letter generation.
func (c *AnalyzeController) PostAnalyze(w http.ResponseWriter, r *http.Request) {
	maxBytes := c.maxUploadMB << 20
	if r.ContentLength > maxBytes {
		c.renderError(w, r, "", http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Upload is larger than %d MB.", c.maxUploadMB))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.renderError(w, r, "", http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload is larger than %d MB.", c.maxUploadMB))
			return
		}
		c.renderError(w, r, "", http.StatusBadRequest, "Invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	patientID := strings.TrimSpace(r.FormValue("patient_id"))
	if patientID == "" {
		patientID = c.profile.DefaultPatientID
	}

	image, err := formUpload(r, "ct_image", imageExtensions)
	if err != nil {
		c.renderUploadError(w, r, patientID, err)
		return
	}
	defer closeUpload(image)

	audio, err := formUpload(r, "voice_note", audioExtensions)
	if err != nil {
		c.renderUploadError(w, r, patientID, err)
		return
	}
	defer closeUpload(audio)

	req := services.Request{PatientID: patientID}
	if image != nil {
		req.Image = &image.upload
	}
	if audio != nil {
		req.Audio = &audio.upload
	}

	snap, err := c.pipeline.Run(r.Context(), req)
	if err != nil {
		c.renderRunError(w, r, patientID, err)
		return
	}

	if err := c.snapshots.Save(r.Context(), middleware.CurrentSessionKey(r), snap); err != nil {
		// Show the result anyway; only the download links depend on the store.
		c.logger.ErrorContext(r.Context(), "failed to save snapshot", "error", err)
		data, page := c.pageData(r, patientID)
		page.Snapshot = snap
		data.Warning = "The result could not be saved for this session. Letter downloads are unavailable."
		c.templates.Page.ExecuteHTTP(w, r, data)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GetLetter downloads the English ("en") or Malay ("bm") letter of the
// latest analysis as a plain text file.
func (c *AnalyzeController) GetLetter(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")

	snap, err := c.snapshots.Latest(r.Context(), middleware.CurrentSessionKey(r))
	if err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			http.Error(w, "No letter available. Run an analysis first.", http.StatusNotFound)
			return
		}
		c.logger.ErrorContext(r.Context(), "failed to load snapshot", "error", err)
		http.Error(w, "Failed to load letter", http.StatusServiceUnavailable)
		return
	}

	letter, ok := snap.Letters.ByLang(lang)
	if !ok {
		http.Error(w, "Unknown letter language", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, letter.FileName))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, letter.Body)
}

func (c *AnalyzeController) pageData(r *http.Request, patientID string) (*views.TemplateData, *AnalyzePageData) {
	if patientID == "" {
		patientID = c.profile.DefaultPatientID
	}
	page := &AnalyzePageData{
		Clinic:      c.profile.Clinic,
		Physician:   c.profile.Physician,
		PatientID:   patientID,
		Platform:    c.status.Status(r.Context()),
		ImageAccept: strings.Join(imageExtensions, ","),
		AudioAccept: strings.Join(audioExtensions, ","),
		MaxUploadMB: c.maxUploadMB,
	}
	return &views.TemplateData{
		Title:         "Rural Health AI Assistant",
		CSRFToken:     csrf.Token(r),
		IsDevelopment: c.development,
		Data:          page,
	}, page
}

// renderError renders the form with an error message.
func (c *AnalyzeController) renderError(w http.ResponseWriter, r *http.Request, patientID string, status int, msg string) {
	data, _ := c.pageData(r, patientID)
	data.Error = msg
	c.templates.Page.ExecuteHTTPWithStatus(w, r, status, data)
}

func (c *AnalyzeController) renderUploadError(w http.ResponseWriter, r *http.Request, patientID string, err error) {
	var fileErr models.FileError
	if errors.As(err, &fileErr) {
		c.renderError(w, r, patientID, http.StatusUnprocessableEntity, fileErr.Error())
		return
	}
	c.logger.ErrorContext(r.Context(), "failed to read upload", "error", err)
	c.renderError(w, r, patientID, http.StatusBadRequest, "Failed to read the uploaded file.")
}

// renderRunError maps pipeline errors to a message for the clinician.
func (c *AnalyzeController) renderRunError(w http.ResponseWriter, r *http.Request, patientID string, err error) {
	switch {
	case errors.Is(err, services.ErrMissingImage):
		data, _ := c.pageData(r, patientID)
		data.Warning = "Please upload a CT Scan image first."
		c.templates.Page.ExecuteHTTPWithStatus(w, r, http.StatusUnprocessableEntity, data)
	case errors.Is(err, services.ErrUnauthorized):
		c.logger.ErrorContext(r.Context(), "platform rejected credentials", "error", err)
		c.renderError(w, r, patientID, http.StatusBadGateway, "The analysis platform rejected our credentials. Check the API key and project settings.")
	case errors.Is(err, services.ErrServiceUnavailable):
		c.logger.WarnContext(r.Context(), "platform unavailable", "error", err)
		c.renderError(w, r, patientID, http.StatusServiceUnavailable, "The analysis service is unavailable right now. Please try again shortly.")
	case errors.Is(err, services.ErrEmptyResponse):
		c.logger.WarnContext(r.Context(), "platform returned no analysis", "error", err)
		c.renderError(w, r, patientID, http.StatusBadGateway, "The analysis service returned an empty result. Please try again.")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.renderError(w, r, patientID, http.StatusGatewayTimeout, "The analysis took too long and was cancelled.")
	default:
		c.logger.ErrorContext(r.Context(), "analysis failed", "error", err)
		c.renderError(w, r, patientID, http.StatusInternalServerError, fmt.Sprintf("Analysis failed: %v", err))
	}
}

type formFile struct {
	file   multipart.File
	upload services.Upload
}

// formUpload opens an optional multipart file. A missing field yields nil.
func formUpload(r *http.Request, field string, allowed []string) (*formFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if header.Filename == "" || header.Size == 0 {
		file.Close()
		return nil, nil
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !contains(allowed, ext) {
		file.Close()
		return nil, models.FileError{
			Issue: fmt.Sprintf("%s: unsupported file type %q, expected one of %s", header.Filename, ext, strings.Join(allowed, ", ")),
		}
	}

	return &formFile{
		file:   file,
		upload: services.Upload{Name: header.Filename, Body: file},
	}, nil
}

func closeUpload(f *formFile) {
	if f != nil {
		f.file.Close()
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
