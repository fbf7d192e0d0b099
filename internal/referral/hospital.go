package referral

import "strings"

// DefaultHospital is the referral target used when none can be extracted.
const DefaultHospital = "Nearest District Specialist Hospital"

// DefaultHospitalKeyword is the field label searched for in SOP text.
const DefaultHospitalKeyword = "hospital"

// ExtractHospital returns the value after the colon on the first line that
// contains keyword (case-insensitive). Leading list markers are stripped.
func ExtractHospital(text, keyword string) string {
	keyword = strings.ToLower(keyword)
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(strings.ToLower(line), keyword) {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			return DefaultHospital
		}
		return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(value), "-*"))
	}
	return DefaultHospital
}
