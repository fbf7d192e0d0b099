package models

import (
	"context"
	"time"

	"github.com/rahul4469/ct-referral-assistant/internal/referral"
)

type TranscriptStatus string

const (
	TranscriptSkipped     TranscriptStatus = "skipped"
	TranscriptOK          TranscriptStatus = "ok"
	TranscriptEmpty       TranscriptStatus = "empty"
	TranscriptUnavailable TranscriptStatus = "unavailable"
	TranscriptFailed      TranscriptStatus = "failed"
)

func (s TranscriptStatus) String() string {
	return string(s)
}

// TranscriptOutcome records how the voice note step ended. Text is what the
// rest of the run used as the clinical note.
type TranscriptOutcome struct {
	Status TranscriptStatus `json:"status"`
	Text   string           `json:"text"`
	Reason string           `json:"reason,omitempty"`
}

// Succeeded is true only for a non-empty transcript.
func (o TranscriptOutcome) Succeeded() bool {
	return o.Status == TranscriptOK
}

// Attempted is false when no voice note was uploaded.
func (o TranscriptOutcome) Attempted() bool {
	return o.Status != "" && o.Status != TranscriptSkipped
}

// Snapshot is the result of one analysis run as the page shows it.
type Snapshot struct {
	PatientID      string                  `json:"patient_id"`
	Transcript     TranscriptOutcome       `json:"transcript"`
	ContextUsed    bool                    `json:"context_used"`
	Findings       referral.BilingualText  `json:"findings"`
	Diagnosis      referral.BilingualText  `json:"diagnosis"`
	SOP            referral.BilingualText  `json:"sop"`
	Hospital       string                  `json:"hospital"`
	Classification referral.Classification `json:"classification"`
	Letters        referral.Letters        `json:"letters"`
	CreatedAt      time.Time               `json:"created_at"`
}

// SnapshotStore keeps the most recent snapshot for each browser session.
// Save overwrites whatever the session held before.
type SnapshotStore interface {
	Latest(ctx context.Context, sessionKey string) (*Snapshot, error)
	Save(ctx context.Context, sessionKey string, snapshot *Snapshot) error
}
