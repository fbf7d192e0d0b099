package referral

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedComposer() *Composer {
	c := NewComposer("Dr. Ali", "Klinik Desa AI")
	c.Now = func() time.Time { return time.Date(2025, 11, 25, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		diagnosis string
		want      Classification
	}{
		{"No acute intracranial abnormality", Normal},
		{"Normal CT brain", Normal},
		{"NO ABNORMALITIES DETECTED", Normal},
		{"Mass lesion suspicious for malignancy", Abnormal},
		{"", Abnormal},
	}
	for _, tt := range tests {
		t.Run(tt.diagnosis, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.diagnosis))
		})
	}
}

func TestCompose_NormalSelectsDischarge(t *testing.T) {
	diag := "No acute intracranial abnormality [BM] Tiada abnormaliti intrakranial akut"
	in := LetterInput{
		PatientID:      "1023",
		Classification: Classify(diag),
		Diagnosis:      SplitBilingual(diag, DefaultMarker),
		Findings:       SplitBilingual("Brain parenchyma normal.", DefaultMarker),
		Plan:           SplitBilingual("Routine follow-up.", DefaultMarker),
		Hospital:       DefaultHospital,
	}

	letters := fixedComposer().Compose(in)

	assert.Equal(t, DischargeSummary, letters.Kind)
	assert.Equal(t, "discharge_summary_1023_EN.txt", letters.English.FileName)
	assert.Equal(t, "discharge_summary_1023_BM.txt", letters.Malay.FileName)
	assert.Equal(t, "Download Discharge Summary (EN)", letters.DownloadLabel("en"))
	assert.True(t, strings.HasPrefix(letters.English.Body, "DISCHARGE SUMMARY [EN]"))
	assert.True(t, strings.HasPrefix(letters.Malay.Body, "RINGKASAN DISCAJ [BM]"))
	assert.Contains(t, letters.English.Body, "Date: 2025-11-25")
	assert.Contains(t, letters.English.Body, "None provided")
	assert.Contains(t, letters.Malay.Body, "Tiada abnormaliti intrakranial akut")
	assert.NotContains(t, letters.English.Body, "Tiada abnormaliti")
}

func TestCompose_AbnormalSelectsReferralWithHospital(t *testing.T) {
	sop := "Urgent oncology referral.\nHospital: HKL\n[BM] Rujukan onkologi segera."
	diag := "Mass lesion suspicious for malignancy"
	in := LetterInput{
		PatientID:      "P-77",
		ClinicalNote:   "Headache for two weeks.",
		Classification: Classify(diag),
		Diagnosis:      SplitBilingual(diag, DefaultMarker),
		Findings:       SplitBilingual("3 cm enhancing mass.", DefaultMarker),
		Plan:           SplitBilingual(sop, DefaultMarker),
		Hospital:       ExtractHospital(sop, DefaultHospitalKeyword),
	}

	letters := fixedComposer().Compose(in)

	require.Equal(t, UrgentReferral, letters.Kind)
	assert.Contains(t, letters.English.Body, "To: HKL")
	assert.Contains(t, letters.Malay.Body, "Kepada: HKL")
	assert.Contains(t, letters.English.Body, "REFERRED BY: Dr. Ali")
	assert.Contains(t, letters.English.Body, "Headache for two weeks.")
	assert.Contains(t, letters.Malay.Body, "[BM] Rujukan onkologi segera.")
	assert.Equal(t, "referral_letter_P-77_EN.txt", letters.English.FileName)
	assert.Equal(t, "Download Urgent Referral Letter (BM)", letters.DownloadLabel("bm"))
}

func TestLetters_ByLang(t *testing.T) {
	letters := fixedComposer().Compose(LetterInput{PatientID: "1"})

	en, ok := letters.ByLang("en")
	require.True(t, ok)
	assert.Equal(t, LangEnglish, en.Lang)

	bm, ok := letters.ByLang("BM")
	require.True(t, ok)
	assert.Equal(t, LangMalay, bm.Lang)

	_, ok = letters.ByLang("fr")
	assert.False(t, ok)
}

func TestFileName_Sanitises(t *testing.T) {
	assert.Equal(t, "referral_letter_1023_EN.txt", FileName(UrgentReferral, "#10/23", LangEnglish))
	assert.Equal(t, "referral_letter_unknown_BM.txt", FileName(UrgentReferral, "../", LangMalay))
}
