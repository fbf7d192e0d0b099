package referral

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// LetterKind selects which letter layout is produced.
type LetterKind string

const (
	DischargeSummary LetterKind = "discharge_summary"
	UrgentReferral   LetterKind = "referral_letter"
)

// Language tags used in letter headings and file names.
const (
	LangEnglish = "EN"
	LangMalay   = "BM"
)

const (
	dischargeRecipientEN = "Patient File / Primary Care Follow-up"
	dischargeRecipientBM = "Fail Pesakit / Susulan Penjagaan Primer"
	noNoteEN             = "None provided"
	noNoteBM             = "Tiada"
)

// KindFor maps a diagnosis classification to its letter layout.
func KindFor(c Classification) LetterKind {
	if c.IsNormal() {
		return DischargeSummary
	}
	return UrgentReferral
}

// Letter is one rendered plain-text document.
type Letter struct {
	Lang     string `json:"lang"`
	FileName string `json:"file_name"`
	Body     string `json:"body"`
}

// Letters is the pair of parallel documents for one analysis.
type Letters struct {
	Kind    LetterKind `json:"kind"`
	English Letter     `json:"english"`
	Malay   Letter     `json:"malay"`
}

// ByLang returns the letter for an "en" or "bm" tag.
func (l Letters) ByLang(lang string) (Letter, bool) {
	switch strings.ToUpper(lang) {
	case LangEnglish:
		return l.English, true
	case LangMalay:
		return l.Malay, true
	}
	return Letter{}, false
}

// DownloadLabel is the button text for the letter in the given language.
func (l Letters) DownloadLabel(lang string) string {
	name := "Urgent Referral Letter"
	if l.Kind == DischargeSummary {
		name = "Discharge Summary"
	}
	return fmt.Sprintf("Download %s (%s)", name, strings.ToUpper(lang))
}

// LetterInput carries everything a letter is filled with.
type LetterInput struct {
	PatientID      string
	ClinicalNote   string
	Classification Classification
	Diagnosis      BilingualText
	Findings       BilingualText
	Plan           BilingualText
	Hospital       string
}

// Composer fills the fixed letter layouts.
type Composer struct {
	Physician string
	Clinic    string
	Now       func() time.Time
}

func NewComposer(physician, clinic string) *Composer {
	return &Composer{
		Physician: physician,
		Clinic:    clinic,
		Now:       time.Now,
	}
}

type letterFields struct {
	Recipient string
	Clinic    string
	Date      string
	PatientID string
	Physician string
	Note      string
	Diagnosis string
	Findings  string
	Plan      string
}

// Compose renders the English and Malay copies of the letter selected by
// the input's classification.
func (c *Composer) Compose(in LetterInput) Letters {
	kind := KindFor(in.Classification)
	date := c.Now().Format("2006-01-02")

	en := letterFields{
		Recipient: in.Hospital,
		Clinic:    c.Clinic,
		Date:      date,
		PatientID: in.PatientID,
		Physician: c.Physician,
		Note:      orDefault(in.ClinicalNote, noNoteEN),
		Diagnosis: in.Diagnosis.English,
		Findings:  in.Findings.English,
		Plan:      in.Plan.English,
	}
	bm := en
	bm.Note = orDefault(in.ClinicalNote, noNoteBM)
	bm.Diagnosis = in.Diagnosis.Localized
	bm.Findings = in.Findings.Localized
	bm.Plan = in.Plan.Localized

	if kind == DischargeSummary {
		en.Recipient = dischargeRecipientEN
		bm.Recipient = dischargeRecipientBM
	}

	tmpls := letterTemplates[kind]
	return Letters{
		Kind: kind,
		English: Letter{
			Lang:     LangEnglish,
			FileName: FileName(kind, in.PatientID, LangEnglish),
			Body:     render(tmpls[0], en),
		},
		Malay: Letter{
			Lang:     LangMalay,
			FileName: FileName(kind, in.PatientID, LangMalay),
			Body:     render(tmpls[1], bm),
		},
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName builds the download name, e.g. referral_letter_1023_EN.txt.
func FileName(kind LetterKind, patientID, lang string) string {
	id := unsafeFileChars.ReplaceAllString(patientID, "")
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s.txt", kind, id, lang)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func render(t *template.Template, f letterFields) string {
	var buf bytes.Buffer
	// Fields are plain strings; execution cannot fail on them.
	_ = t.Execute(&buf, f)
	return buf.String()
}

var letterTemplates = map[LetterKind][2]*template.Template{
	UrgentReferral: {
		template.Must(template.New("referral_en").Parse(referralEN)),
		template.Must(template.New("referral_bm").Parse(referralBM)),
	},
	DischargeSummary: {
		template.Must(template.New("discharge_en").Parse(dischargeEN)),
		template.Must(template.New("discharge_bm").Parse(dischargeBM)),
	},
}

const referralEN = `URGENT REFERRAL LETTER [EN]
---------------------------
To: {{.Recipient}}
From: {{.Clinic}} (Automated System)
Date: {{.Date}}

PATIENT ID: #{{.PatientID}}
REFERRED BY: {{.Physician}}

1. CLINICAL CONTEXT:
{{.Note}}

2. DIAGNOSIS CONCLUSION:
{{.Diagnosis}}

3. RADIOLOGICAL FINDINGS:
{{.Findings}}

4. RECOMMENDED MANAGEMENT PLAN (MOH SOP):
{{.Plan}}

---------------------------------------------------
Generated by {{.Clinic}} Medical Assistant
Ministry of Health Malaysia Guidelines Compliant
`

const referralBM = `SURAT RUJUKAN SEGERA [BM]
-------------------------
Kepada: {{.Recipient}}
Daripada: {{.Clinic}} (Sistem Automatik)
Tarikh: {{.Date}}

ID PESAKIT: #{{.PatientID}}
DIRUJUK OLEH: {{.Physician}}

1. KONTEKS KLINIKAL:
{{.Note}}

2. KESIMPULAN DIAGNOSIS:
{{.Diagnosis}}

3. PENEMUAN RADIOLOGI:
{{.Findings}}

4. PELAN PENGURUSAN DISYORKAN (SOP KKM):
{{.Plan}}

---------------------------------------------------
Dijana oleh Pembantu Perubatan {{.Clinic}}
Mematuhi Garis Panduan Kementerian Kesihatan Malaysia
`

const dischargeEN = `DISCHARGE SUMMARY [EN]
----------------------
To: {{.Recipient}}
From: {{.Clinic}} (Automated System)
Date: {{.Date}}

PATIENT ID: #{{.PatientID}}
ATTENDING DOCTOR: {{.Physician}}

1. CLINICAL CONTEXT:
{{.Note}}

2. DIAGNOSIS CONCLUSION:
{{.Diagnosis}}

3. RADIOLOGICAL FINDINGS:
{{.Findings}}

4. FOLLOW-UP PLAN:
{{.Plan}}

---------------------------------------------------
Generated by {{.Clinic}} Medical Assistant
Ministry of Health Malaysia Guidelines Compliant
`

const dischargeBM = `RINGKASAN DISCAJ [BM]
---------------------
Kepada: {{.Recipient}}
Daripada: {{.Clinic}} (Sistem Automatik)
Tarikh: {{.Date}}

ID PESAKIT: #{{.PatientID}}
DOKTOR BERTUGAS: {{.Physician}}

1. KONTEKS KLINIKAL:
{{.Note}}

2. KESIMPULAN DIAGNOSIS:
{{.Diagnosis}}

3. PENEMUAN RADIOLOGI:
{{.Findings}}

4. PELAN SUSULAN:
{{.Plan}}

---------------------------------------------------
Dijana oleh Pembantu Perubatan {{.Clinic}}
Mematuhi Garis Panduan Kementerian Kesihatan Malaysia
`
