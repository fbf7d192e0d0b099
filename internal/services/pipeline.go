package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rahul4469/ct-referral-assistant/internal/models"
	"github.com/rahul4469/ct-referral-assistant/internal/referral"
)

// TranscriptFailedText stands in for the doctor's note when transcription
// fails. The run continues with it as the clinical context.
const TranscriptFailedText = "Error: Audio transcription failed (Check Model Quota)."

// PipelineOptions holds the text-processing settings of a run.
type PipelineOptions struct {
	Marker          string
	HospitalKeyword string
}

// Pipeline runs one analysis: optional voice note, CT image, then the
// bilingual split, hospital extraction and letter composition.
type Pipeline struct {
	stager      *Stager
	transcriber Transcriber
	analyzer    Analyzer
	composer    *referral.Composer
	opts        PipelineOptions
	logger      *slog.Logger
	now         func() time.Time
}

func NewPipeline(
	stager *Stager,
	transcriber Transcriber,
	analyzer Analyzer,
	composer *referral.Composer,
	opts PipelineOptions,
	logger *slog.Logger,
) *Pipeline {
	if opts.Marker == "" {
		opts.Marker = referral.DefaultMarker
	}
	if opts.HospitalKeyword == "" {
		opts.HospitalKeyword = referral.DefaultHospitalKeyword
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		stager:      stager,
		transcriber: transcriber,
		analyzer:    analyzer,
		composer:    composer,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// Request is one click of the analyse button.
type Request struct {
	PatientID string
	Image     *Upload
	Audio     *Upload
}

// Run executes the steps in order. A missing image stops the run before any
// remote call. A failed transcription does not stop it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.Snapshot, error) {
	if req.Image == nil || req.Image.Body == nil {
		return nil, ErrMissingImage
	}
	log := p.logger.With("patient_id", req.PatientID)

	transcript := p.transcribe(ctx, log, req.Audio)

	log.Info("analyzing CT image", "file", req.Image.Name, "has_context", transcript.Text != "")
	imageRef, err := p.stager.Stage(ctx, *req.Image)
	if err != nil {
		return nil, fmt.Errorf("stage image: %w", err)
	}

	result, err := p.analyzer.Analyze(ctx, AnalysisRequest{
		ImageRef: imageRef,
		Context:  transcript.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}
	if result.Empty() {
		return nil, fmt.Errorf("analyze image: %w", ErrEmptyResponse)
	}

	snap := p.assemble(req.PatientID, transcript, result)
	snap.ContextUsed = result.ContextUsed
	log.Info("analysis complete",
		"classification", snap.Classification,
		"letter", snap.Letters.Kind,
		"hospital", snap.Hospital,
		"bilingual", snap.Diagnosis.Separated(),
		"context_used", snap.ContextUsed,
	)
	return snap, nil
}

func (p *Pipeline) transcribe(ctx context.Context, log *slog.Logger, audio *Upload) models.TranscriptOutcome {
	if audio == nil || audio.Body == nil {
		return models.TranscriptOutcome{Status: models.TranscriptSkipped}
	}

	log.Info("transcribing voice note", "file", audio.Name)
	text, err := p.transcribeAudio(ctx, *audio)
	if err != nil {
		status := models.TranscriptFailed
		if errors.Is(err, ErrServiceUnavailable) {
			status = models.TranscriptUnavailable
		}
		log.Warn("transcription failed", "status", status, "error", err)
		return models.TranscriptOutcome{
			Status: status,
			Text:   TranscriptFailedText,
			Reason: err.Error(),
		}
	}

	if strings.TrimSpace(text) == "" {
		log.Warn("transcription returned no text")
		return models.TranscriptOutcome{
			Status: models.TranscriptEmpty,
			Reason: ErrEmptyResponse.Error(),
		}
	}
	return models.TranscriptOutcome{Status: models.TranscriptOK, Text: strings.TrimSpace(text)}
}

func (p *Pipeline) transcribeAudio(ctx context.Context, audio Upload) (string, error) {
	ref, err := p.stager.Stage(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("stage audio: %w", err)
	}
	return p.transcriber.Transcribe(ctx, ref)
}

func (p *Pipeline) assemble(patientID string, transcript models.TranscriptOutcome, result AnalysisResult) *models.Snapshot {
	findings := referral.SplitBilingual(result.Findings, p.opts.Marker)
	diagnosis := referral.SplitBilingual(result.Diagnosis, p.opts.Marker)
	sop := referral.SplitBilingual(result.SOP, p.opts.Marker)
	hospital := referral.ExtractHospital(result.SOP, p.opts.HospitalKeyword)
	classification := referral.Classify(result.Diagnosis)

	letters := p.composer.Compose(referral.LetterInput{
		PatientID:      patientID,
		ClinicalNote:   transcript.Text,
		Classification: classification,
		Diagnosis:      diagnosis,
		Findings:       findings,
		Plan:           sop,
		Hospital:       hospital,
	})

	return &models.Snapshot{
		PatientID:      patientID,
		Transcript:     transcript,
		Findings:       findings,
		Diagnosis:      diagnosis,
		SOP:            sop,
		Hospital:       hospital,
		Classification: classification,
		Letters:        letters,
		CreatedAt:      p.now(),
	}
}
