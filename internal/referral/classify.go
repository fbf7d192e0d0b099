package referral

import "strings"

// Classification is the coarse outcome of a diagnosis.
type Classification string

const (
	Normal   Classification = "normal"
	Abnormal Classification = "abnormal"
)

var normalPhrases = []string{
	"normal",
	"no acute",
	"no abnormalities",
}

// Classify marks a diagnosis normal when it contains any of the known
// reassurance phrases. Matching is plain substring search.
func Classify(diagnosis string) Classification {
	lower := strings.ToLower(diagnosis)
	for _, phrase := range normalPhrases {
		if strings.Contains(lower, phrase) {
			return Normal
		}
	}
	return Abnormal
}

func (c Classification) IsNormal() bool {
	return c == Normal
}

func (c Classification) String() string {
	return string(c)
}
