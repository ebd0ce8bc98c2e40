package triage

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type AttachmentKind string

const (
	KindImage    AttachmentKind = "image"
	KindDocument AttachmentKind = "document"
	KindAudio    AttachmentKind = "audio"
)

// Attachment is display metadata only; file contents are never kept.
type Attachment struct {
	Name string         `json:"name"`
	Kind AttachmentKind `json:"type"`
	Size string         `json:"size"`
}

// NewAttachment derives the display kind from the media type prefix and a
// human readable size.
func NewAttachment(name, mediaType string, size int64) Attachment {
	kind := KindDocument
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		kind = KindImage
	case strings.HasPrefix(mediaType, "audio/"):
		kind = KindAudio
	}
	return Attachment{Name: name, Kind: kind, Size: SizeLabel(size)}
}

func SizeLabel(size int64) string {
	return fmt.Sprintf("%.1f KB", float64(size)/1024)
}

// Entry is one line of the transcript. Entries are immutable once appended.
type Entry struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

var riskRank = map[RiskTier]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

func (r RiskTier) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// Less orders tiers low < medium < high < critical.
func (r RiskTier) Less(other RiskTier) bool {
	return riskRank[r] < riskRank[other]
}

// Urgency is the advice line shown for a tier.
func (r RiskTier) Urgency() string {
	switch r {
	case RiskCritical:
		return "Call emergency services immediately"
	case RiskHigh:
		return "Seek medical attention within 24 hours"
	case RiskMedium:
		return "Consider consulting healthcare provider"
	default:
		return "Monitor and self-care appropriate"
	}
}

type Assessment struct {
	RiskLevel       RiskTier  `json:"risk_level"`
	Confidence      int       `json:"confidence"`
	Symptoms        []string  `json:"symptoms"`
	Recommendations []string  `json:"recommendations"`
	Urgency         string    `json:"urgency"`
	NextSteps       []string  `json:"next_steps"`
	CreatedAt       time.Time `json:"created_at"`
}

// State is a point-in-time copy of a conversation.
type State struct {
	ID         string       `json:"id"`
	Entries    []Entry      `json:"entries"`
	Pending    []Attachment `json:"pending_attachments"`
	Composing  bool         `json:"composing"`
	Recording  bool         `json:"recording"`
	Assessment *Assessment  `json:"assessment,omitempty"`
}

// Greeting opens every conversation.
const Greeting = "Hello! I'm your AI Health Assistant. I can help analyze your symptoms, review medical documents, and provide preliminary health assessments. Please describe your symptoms or upload any relevant medical documents."

// TriggerKeywords start an assessment when found in submitted text.
var TriggerKeywords = []string{"pain", "fever", "chest", "headache"}

func MentionsSymptoms(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range TriggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func attachmentNote(n int) string {
	return fmt.Sprintf(" I've also reviewed your uploaded %d document(s) and incorporated that information into my assessment.", n)
}
