// Package extract finds itinerary references in communications.
package extract

import (
	"regexp"
	"strings"

	"sentra_backend/internal/story/domain"
)

// Methods reported alongside an extracted reference.
const (
	MethodReferenceLink = "reference_link"
	MethodTimelineLink  = "timeline_link"
	MethodContentPath   = "content_path"
	MethodCodePattern   = "code_pattern"
)

var (
	appPathPattern = regexp.MustCompile(`(?i)/app/itinerary/([A-Z0-9\-]+)`)
	codePattern    = regexp.MustCompile(`(?i)\bPCK-\d{4}-\d{4}\b`)
)

// ItineraryRef returns the itinerary a communication refers to and the
// method that found it. The first method that matches wins:
// the reference link, then timeline links, then the content and subject
// text (an /app/itinerary/ path before a PCK code, per blob).
func ItineraryRef(comm *domain.Communication) (ref string, method string, ok bool) {
	if comm == nil {
		return "", "", false
	}

	if strings.EqualFold(comm.ReferenceDocType, domain.DocTypeItinerary) && comm.ReferenceName != "" {
		return comm.ReferenceName, MethodReferenceLink, true
	}

	for _, link := range comm.TimelineLinks {
		if strings.EqualFold(link.LinkDocType, domain.DocTypeItinerary) && link.LinkName != "" {
			return link.LinkName, MethodTimelineLink, true
		}
	}

	for _, blob := range []string{comm.Content, comm.Subject} {
		if blob == "" {
			continue
		}
		if m := appPathPattern.FindStringSubmatch(blob); m != nil {
			return m[1], MethodContentPath, true
		}
		if m := codePattern.FindString(blob); m != "" {
			return m, MethodCodePattern, true
		}
	}

	return "", "", false
}
