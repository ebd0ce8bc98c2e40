package intake

import "github.com/google/uuid"

// Feature is one tile of the landing page feature grid.
type Feature struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

type Action struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type Landing struct {
	Headline    string    `json:"headline"`
	Tagline     string    `json:"tagline"`
	Features    []Feature `json:"features"`
	FormTitle   string    `json:"form_title"`
	Placeholder string    `json:"placeholder"`
	SubmitLabel string    `json:"submit_label"`
	SentLabel   string    `json:"sent_label"`
	ThankYou    string    `json:"thank_you"`
	Actions     []Action  `json:"actions"`
}

var LandingContent = Landing{
	Headline: "HealthGuard AI",
	Tagline: "Continuous personal vitals + face/emotion scanning, AI triage & emergency alerts " +
		"(SMS/push/call), nearest-hospital search & turn-by-turn travel (Telangana ready), " +
		"all built to HIPAA-grade security and clinical validation.",
	Features: []Feature{
		{Icon: "heart", Label: "Continuous Vitals"},
		{Icon: "alert-triangle", Label: "AI Triage"},
		{Icon: "map-pin", Label: "Hospital Search"},
		{Icon: "shield", Label: "HIPAA Grade"},
	},
	FormTitle:   "Request Early Access",
	Placeholder: "Enter your email address",
	SubmitLabel: "Get Demo Access",
	SentLabel:   "Demo Request Sent!",
	ThankYou:    "Thank you! We'll be in touch with demo access soon.",
	Actions: []Action{
		{Label: "Try Face Scanner", Target: "scan"},
		{Label: "Find Hospitals", Target: "hospitals"},
	},
}

// Status is what the landing form shows. The submitted address is never kept.
type Status struct {
	ID        uuid.UUID `json:"id"`
	Submitted bool      `json:"submitted"`
	Message   string    `json:"message,omitempty"`
}
