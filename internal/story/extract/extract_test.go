package extract

import (
	"testing"

	"sentra_backend/internal/story/domain"

	"github.com/stretchr/testify/assert"
)

func TestItineraryRef(t *testing.T) {
	tests := []struct {
		name       string
		comm       *domain.Communication
		wantRef    string
		wantMethod string
		wantOK     bool
	}{
		{
			name: "reference link wins over code in content",
			comm: &domain.Communication{
				ReferenceDocType: "Itinerary",
				ReferenceName:    "ITIN-01",
				Content:          "see PCK-1234-5678",
			},
			wantRef:    "ITIN-01",
			wantMethod: MethodReferenceLink,
			wantOK:     true,
		},
		{
			name:       "reference doctype is case-insensitive",
			comm:       &domain.Communication{ReferenceDocType: "itinerary", ReferenceName: "ITIN-02"},
			wantRef:    "ITIN-02",
			wantMethod: MethodReferenceLink,
			wantOK:     true,
		},
		{
			name: "reference without name falls through to timeline",
			comm: &domain.Communication{
				ReferenceDocType: "Itinerary",
				TimelineLinks: []domain.TimelineLink{
					{LinkDocType: "Contact", LinkName: "C1"},
					{LinkDocType: "Itinerary", LinkName: "ITIN-03"},
				},
			},
			wantRef:    "ITIN-03",
			wantMethod: MethodTimelineLink,
			wantOK:     true,
		},
		{
			name: "timeline wins over content",
			comm: &domain.Communication{
				TimelineLinks: []domain.TimelineLink{{LinkDocType: "ITINERARY", LinkName: "ITIN-04"}},
				Content:       "/app/itinerary/ITIN-99",
			},
			wantRef:    "ITIN-04",
			wantMethod: MethodTimelineLink,
			wantOK:     true,
		},
		{
			name:       "app path in content",
			comm:       &domain.Communication{Content: `<a href="https://crm.example.com/app/itinerary/itin-0005">open</a>`},
			wantRef:    "itin-0005",
			wantMethod: MethodContentPath,
			wantOK:     true,
		},
		{
			name:       "app path beats code in the same blob",
			comm:       &domain.Communication{Content: "PCK-1111-2222 at /APP/ITINERARY/ITIN-06"},
			wantRef:    "ITIN-06",
			wantMethod: MethodContentPath,
			wantOK:     true,
		},
		{
			name:       "code in content beats path in subject",
			comm:       &domain.Communication{Content: "your package pck-2024-0001 is ready", Subject: "/app/itinerary/ITIN-07"},
			wantRef:    "pck-2024-0001",
			wantMethod: MethodCodePattern,
			wantOK:     true,
		},
		{
			name:       "code in subject",
			comm:       &domain.Communication{Content: "hello", Subject: "Proposal PCK-2025-0042"},
			wantRef:    "PCK-2025-0042",
			wantMethod: MethodCodePattern,
			wantOK:     true,
		},
		{
			name:   "code must be word bounded",
			comm:   &domain.Communication{Content: "XPCK-1234-56789"},
			wantOK: false,
		},
		{
			name:   "nothing to find",
			comm:   &domain.Communication{Content: "thanks!", ReferenceDocType: "Contact", ReferenceName: "C1"},
			wantOK: false,
		},
		{
			name:   "nil communication",
			comm:   nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, method, ok := ItineraryRef(tt.comm)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRef, ref)
			assert.Equal(t, tt.wantMethod, method)
		})
	}
}
