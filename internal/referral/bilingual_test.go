package referral

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitBilingual(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		marker    string
		english   string
		localized string
		separated bool
	}{
		{
			name:      "marker in middle",
			text:      "Mass lesion in left lobe.\n\n[BM] Lesi jisim di lobus kiri.",
			marker:    "[BM]",
			english:   "Mass lesion in left lobe.",
			localized: "[BM] Lesi jisim di lobus kiri.",
			separated: true,
		},
		{
			name:      "marker absent",
			text:      "No acute intracranial abnormality.",
			marker:    "[BM]",
			english:   "No acute intracranial abnormality.",
			localized: "No acute intracranial abnormality.",
		},
		{
			name:   "empty text",
			text:   "",
			marker: "[BM]",
		},
		{
			name:      "marker at start",
			text:      "[BM] Normal",
			marker:    "[BM]",
			english:   "",
			localized: "[BM] Normal",
			separated: true,
		},
		{
			name:      "marker at end",
			text:      "Normal study [BM]",
			marker:    "[BM]",
			english:   "Normal study",
			localized: "[BM]",
			separated: true,
		},
		{
			name:      "only first marker splits",
			text:      "A [BM] B [BM] C",
			marker:    "[BM]",
			english:   "A",
			localized: "[BM] B [BM] C",
			separated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitBilingual(tt.text, tt.marker)
			assert.Equal(t, tt.english, got.English)
			assert.Equal(t, tt.localized, got.Localized)
			assert.Equal(t, tt.separated, got.Separated())
		})
	}
}

func TestSplitBilingual_Reconstructs(t *testing.T) {
	text := "English part  [BM]  Bahagian Melayu"
	got := SplitBilingual(text, "[BM]")

	assert.True(t, strings.HasPrefix(got.Localized, "[BM]"))
	idx := strings.Index(text, "[BM]")
	assert.Equal(t, strings.TrimSpace(text[:idx]), got.English)
	assert.Equal(t, strings.TrimSpace(text[idx:]), got.Localized)
}

func TestSplitBilingual_EmptyMarkerIsNoop(t *testing.T) {
	got := SplitBilingual("abc", "")
	assert.Equal(t, BilingualText{English: "abc", Localized: "abc"}, got)
}
