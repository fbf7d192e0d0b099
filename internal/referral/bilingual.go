package referral

import "strings"

// DefaultMarker separates the English and Malay halves of platform output.
const DefaultMarker = "[BM]"

// BilingualText holds the two language halves of one free-text field.
type BilingualText struct {
	English   string `json:"english"`
	Localized string `json:"localized"`
}

// Separated reports whether a marker was found. When it was not, both
// halves hold the original text.
func (b BilingualText) Separated() bool {
	return b.English != b.Localized
}

// SplitBilingual splits text on the first occurrence of marker. The
// localized half keeps the marker as its heading. When marker is absent
// the text is returned unchanged in both positions.
func SplitBilingual(text, marker string) BilingualText {
	if marker == "" {
		return BilingualText{English: text, Localized: text}
	}
	before, after, found := strings.Cut(text, marker)
	if !found {
		return BilingualText{English: text, Localized: text}
	}
	return BilingualText{
		English:   strings.TrimSpace(before),
		Localized: strings.TrimSpace(marker + after),
	}
}
