package stages

import (
	"context"
	"fmt"
)

// VendorProfile holds the trust signals known for a vendor.
type VendorProfile struct {
	TLS             bool
	DomainAgeDays   int
	PolicyPages     bool
	HappyReviewsPct float64
}

var defaultVendorProfiles = map[string]VendorProfile{
	"AcmeDirect":  {TLS: true, DomainAgeDays: 2400, PolicyPages: true, HappyReviewsPct: 96},
	"HydraGoods":  {TLS: true, DomainAgeDays: 900, PolicyPages: true, HappyReviewsPct: 91},
	"LuminaHome":  {TLS: true, DomainAgeDays: 1500, PolicyPages: true, HappyReviewsPct: 94},
	"NorthPeak":   {TLS: true, DomainAgeDays: 3100, PolicyPages: true, HappyReviewsPct: 97},
	"OrbitAudio":  {TLS: true, DomainAgeDays: 700, PolicyPages: true, HappyReviewsPct: 89},
	"VertexTime":  {TLS: true, DomainAgeDays: 1100, PolicyPages: false, HappyReviewsPct: 88},
	"UnknownMart": {TLS: false, DomainAgeDays: 90, PolicyPages: false, HappyReviewsPct: 52},
	"ScamSupply":  {TLS: false, DomainAgeDays: 30, PolicyPages: false, HappyReviewsPct: 18},
}

// HeuristicTrust scores vendor reputation signals into a risk tier.
type HeuristicTrust struct {
	profiles map[string]VendorProfile
}

// NewHeuristicTrust creates a trust stage backed by a vendor profile table.
// A nil table uses the built-in profiles; unknown vendors assess medium.
func NewHeuristicTrust(profiles map[string]VendorProfile) *HeuristicTrust {
	if profiles == nil {
		profiles = defaultVendorProfiles
	}
	return &HeuristicTrust{profiles: profiles}
}

// Assess implements Trust.
func (t *HeuristicTrust) Assess(_ context.Context, candidate Candidate) (*RiskAssessment, error) {
	if candidate.ID == "" {
		return nil, fmt.Errorf("stages: trust assessment requires a candidate")
	}

	profile, known := t.profiles[candidate.Vendor]
	assessment := &RiskAssessment{
		CandidateID:   candidate.ID,
		Vendor:        candidate.Vendor,
		TLS:           profile.TLS,
		DomainAgeDays: profile.DomainAgeDays,
		PolicyPages:   profile.PolicyPages,
	}

	if !known {
		assessment.Tier = RiskMedium
		assessment.Notes = "vendor not in reputation table"
		assessment.Evidence = append(assessment.Evidence, "unknown_vendor")
		return assessment, nil
	}

	flags := 0
	if !profile.TLS {
		flags++
		assessment.Evidence = append(assessment.Evidence, "no_tls")
	}
	if profile.DomainAgeDays < 180 {
		flags++
		assessment.Evidence = append(assessment.Evidence, "young_domain")
	}
	if !profile.PolicyPages {
		flags++
		assessment.Evidence = append(assessment.Evidence, "missing_policy_pages")
	}
	if profile.HappyReviewsPct < 60 {
		flags++
		assessment.Evidence = append(assessment.Evidence, "poor_reviews")
	}

	switch {
	case flags == 0:
		assessment.Tier = RiskLow
	case flags == 1:
		assessment.Tier = RiskMedium
	default:
		assessment.Tier = RiskHigh
	}
	return assessment, nil
}
