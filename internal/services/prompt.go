package services

import (
	"strings"
)

func analysisSystemPrompt(marker string) string {
	return `You are a radiology assistant at a rural Malaysian clinic. Review the CT scan image and reply with exactly three sections, in this order:

FINDINGS:
<detailed radiological findings>

DIAGNOSIS:
<one-line diagnosis conclusion>

SOP:
<Ministry of Health Malaysia referral or management plan. Include a line "Hospital: <name of the referral hospital>" when referral is needed.>

Write every section in English first, then a line starting with ` + marker + ` followed by the same content in Bahasa Melayu.
Do not add any other headings.`
}

func analysisUserPrompt(note string) string {
	if strings.TrimSpace(note) == "" {
		return "Analyse this CT scan."
	}
	return "Analyse this CT scan. Doctor's note: " + note
}

var sectionHeadings = []string{"FINDINGS:", "DIAGNOSIS:", "SOP:"}

// parseSections splits model output on the FINDINGS/DIAGNOSIS/SOP headings.
// Text before the first heading is ignored. Headings are only taken in
// order, so a later section label quoted inside a section body does not end
// it early unless it is written the way the prompt asks for headings.
func parseSections(text string) AnalysisResult {
	sections := make(map[string]*strings.Builder, len(sectionHeadings))
	var current *strings.Builder
	next := 0

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(strings.TrimSpace(line), "#* ")
		if idx, rest, ok := matchHeading(trimmed, next); ok {
			current = &strings.Builder{}
			sections[sectionHeadings[idx]] = current
			next = idx + 1
			if rest != "" {
				current.WriteString(rest)
				current.WriteString("\n")
			}
			continue
		}
		if current != nil {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	get := func(h string) string {
		if b, ok := sections[h]; ok {
			return strings.TrimSpace(b.String())
		}
		return ""
	}
	return AnalysisResult{
		Findings:  get("FINDINGS:"),
		Diagnosis: get("DIAGNOSIS:"),
		SOP:       get("SOP:"),
	}
}

// matchHeading reports which heading, at or after index from, starts line.
// An upper-case heading may carry text after it. Any other casing only
// counts when the heading stands alone on its line.
func matchHeading(line string, from int) (int, string, bool) {
	upper := strings.ToUpper(line)
	for i := from; i < len(sectionHeadings); i++ {
		h := sectionHeadings[i]
		if !strings.HasPrefix(upper, h) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimLeft(line[len(h):], "*"))
		if strings.HasPrefix(line, h) || rest == "" {
			return i, rest, true
		}
	}
	return 0, "", false
}
