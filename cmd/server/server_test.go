package main

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul4469/ct-referral-assistant/internal/config"
	"github.com/rahul4469/ct-referral-assistant/internal/services"
)

func testConfig(platformURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Address: ":0", Environment: "development", MaxUploadMB: 5},
		Platform: config.PlatformConfig{
			Backend:         config.BackendJamAI,
			BaseURL:         platformURL,
			ProjectID:       "proj_test",
			Token:           "pat_test",
			Timeout:         5 * time.Second,
			CTTable:         "ct_scan",
			ImageColumn:     "ct_scan_result",
			FindingsColumn:  "description",
			DiagnosisColumn: "diagnosis",
			SOPColumn:       "malaysia_referral_SOP",
		},
		Referral: config.ReferralConfig{
			Marker:           "[BM]",
			HospitalKeyword:  "hospital",
			Physician:        "Dr. Ali",
			Clinic:           "Klinik Desa AI",
			DefaultPatientID: "1023",
		},
		Security: config.SecurityConfig{
			CSRFKey:           "0123456789abcdef0123456789abcdef",
			SessionCookieName: "ct_referral_session",
			SessionTTL:        time.Hour,
		},
	}
}

func newTestServer(t *testing.T) http.Handler {
	h, _ := newTestServerWithUploads(t)
	return h
}

// newTestServerWithUploads also counts file uploads that reach the platform.
func newTestServerWithUploads(t *testing.T) (http.Handler, *atomic.Int32) {
	t.Helper()
	uploads := &atomic.Int32{}
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/files/upload" {
			uploads.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}))
	t.Cleanup(platform.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := newServer(context.Background(), testConfig(platform.URL), logger)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv.routes(), uploads
}

var csrfFieldPattern = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

// browserSession loads the home page and returns its cookies and CSRF token.
func browserSession(t *testing.T, h http.Handler) ([]*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	m := csrfFieldPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2)
	return rec.Result().Cookies(), html.UnescapeString(m[1])
}

func uploadForm(t *testing.T, token string, imageSize int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("gorilla.csrf.Token", token))
	require.NoError(t, mw.WriteField("patient_id", "1023"))
	w, err := mw.CreateFormFile("ct_image", "scan.png")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("x"), imageSize))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestRoutes_Health(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"platform":"ok"`)
}

func TestRoutes_HomeIssuesSession(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gorilla.csrf.Token")

	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "ct_referral_session")
}

func TestRoutes_PostRequiresCSRFToken(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoutes_UploadCapAppliesBeforeCSRF(t *testing.T) {
	for _, chunked := range []bool{false, true} {
		t.Run(fmt.Sprintf("chunked=%v", chunked), func(t *testing.T) {
			h, uploads := newTestServerWithUploads(t)
			cookies, token := browserSession(t, h)

			// testConfig caps uploads at 5 MB
			body, contentType := uploadForm(t, token, 12<<20)
			var reader io.Reader = body
			if chunked {
				reader = io.MultiReader(body)
			}
			req := httptest.NewRequest(http.MethodPost, "/analyze", reader)
			if chunked {
				req.ContentLength = -1
			}
			req.Header.Set("Content-Type", contentType)
			for _, c := range cookies {
				req.AddCookie(c)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Zero(t, uploads.Load())
		})
	}
}

func TestRoutes_UploadWithinCapPassesCSRF(t *testing.T) {
	h, uploads := newTestServerWithUploads(t)
	cookies, token := browserSession(t, h)

	body, contentType := uploadForm(t, token, 1024)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// the stub platform answers the upload without a uri
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, int32(1), uploads.Load())
}

func TestRoutes_LetterWithoutAnalysis(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/letters/en", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewBackend(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")

	be, err := newBackend(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &services.JamAIClient{}, be.analyzer)
	assert.Same(t, be.analyzer, be.uploader)

	cfg.Platform.Backend = config.BackendOpenAI
	_, err = newBackend(context.Background(), cfg, slog.Default())
	assert.ErrorIs(t, err, services.ErrNotConfigured)

	cfg.OpenAI.APIKey = "sk-test"
	be, err = newBackend(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, services.InlineUploader{}, be.uploader)
	assert.IsType(t, &services.OpenAIClient{}, be.transcriber)
}
