package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHospital(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    string
	}{
		{
			name:    "simple field",
			text:    "Refer within 24 hours.\nHospital: Hospital Kuala Lumpur\nDepartment: Oncology",
			keyword: "hospital",
			want:    "Hospital Kuala Lumpur",
		},
		{
			name:    "no matching line",
			text:    "Refer to oncology.\nDepartment: Neurosurgery",
			keyword: "hospital",
			want:    DefaultHospital,
		},
		{
			name:    "case insensitive",
			text:    "HOSPITAL: X",
			keyword: "hospital",
			want:    "X",
		},
		{
			name:    "list markers stripped",
			text:    "- **Target Hospital**: - Hospital Sultanah Aminah",
			keyword: "hospital",
			want:    "Hospital Sultanah Aminah",
		},
		{
			name:    "first match wins",
			text:    "Hospital: HKL\nHospital: HSA",
			keyword: "hospital",
			want:    "HKL",
		},
		{
			name:    "first match without colon falls back",
			text:    "Go to the nearest hospital\nHospital: HKL",
			keyword: "hospital",
			want:    DefaultHospital,
		},
		{
			name:    "value keeps later colons",
			text:    "Hospital: HKL: Block A",
			keyword: "hospital",
			want:    "HKL: Block A",
		},
		{
			name:    "empty text",
			text:    "",
			keyword: "hospital",
			want:    DefaultHospital,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHospital(tt.text, tt.keyword))
		})
	}
}
