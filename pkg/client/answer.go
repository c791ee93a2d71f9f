package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

// Wire types for the generateContent REST call.
type (
	generateRequest struct {
		Contents []content `json:"contents"`
		Tools    []tool    `json:"tools,omitempty"`
	}

	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	part struct {
		Text string `json:"text,omitempty"`
	}

	tool struct {
		GoogleSearch *struct{} `json:"google_search,omitempty"`
	}

	generateResponse struct {
		Candidates []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		} `json:"candidates"`
	}

	errorResponse struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
)

// text joins the text parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// ownerAnswer is the JSON object the prompt asks the model for.
type ownerAnswer struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")
	fencedAny  = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON returns the first JSON object found in the model's text:
// a ```json fence, a plain fence, or the outermost braces.
func extractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := fencedAny.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := bareObject.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// parseOwner turns the model's text into an owner. found is false when the
// text has no usable JSON or the model reported that no owner was found.
func parseOwner(text string) (owner record.Enrichment, found bool) {
	raw, ok := extractJSON(text)
	if !ok {
		return record.Enrichment{}, false
	}

	var ans ownerAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return record.Enrichment{}, false
	}

	first := strings.TrimSpace(ans.FirstName)
	if first == "" || strings.EqualFold(first, record.OwnerNotFound) {
		return record.Enrichment{}, false
	}

	source := strings.TrimSpace(ans.Source)
	if source == "" {
		source = "Unknown"
	}

	return record.Enrichment{
		FirstName:  first,
		LastName:   strings.TrimSpace(ans.LastName),
		Source:     source,
		Confidence: normalizeConfidence(ans.Confidence),
	}, true
}

func normalizeConfidence(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "high":
		return record.ConfidenceHigh
	case "medium":
		return record.ConfidenceMedium
	default:
		return record.ConfidenceLow
	}
}
