package scan

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle      State = "idle" // permission unknown
	StateGranted   State = "granted"
	StateDenied    State = "denied"
	StateAnalyzing State = "analyzing" // scanning, vitals pending
	StateResulted  State = "resulted"  // scanning, vitals available
)

func (s State) Scanning() bool {
	return s == StateAnalyzing || s == StateResulted
}

// Permission mirrors the host's camera permission: unknown, granted or denied.
func (s State) Permission() string {
	switch s {
	case StateIdle:
		return "unknown"
	case StateDenied:
		return "denied"
	default:
		return "granted"
	}
}

type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Documented vitals ranges, inclusive.
var (
	HeartRateRange        = Range{60, 100}
	HRVRange              = Range{25, 75}
	RespiratoryRange      = Range{12, 20}
	SystolicRange         = Range{110, 150}
	DiastolicRange        = Range{70, 90}
	OxygenSaturationRange = Range{95, 100}
	ScoreRange            = Range{0, 100}
	ConfidenceRange       = Range{80, 100}

	SkinTempMin = 96.5
	SkinTempMax = 98.5
)

var OverallHealthLabels = []string{"Excellent", "Good", "Fair", "Needs Attention"}

var RiskFactorPool = []string{
	"Elevated stress indicators detected",
	"Irregular sleep patterns suggested",
	"Mild dehydration signs observed",
}

var RecommendationPool = []string{
	"Consider stress reduction techniques",
	"Maintain regular sleep schedule",
	"Stay hydrated throughout the day",
	"Schedule routine health checkup",
}

const (
	// FallbackAnalysis replaces the commentary when the vision call fails or returns nothing.
	FallbackAnalysis = "AI analysis temporarily unavailable. Using local processing."
	// NoFrameAnalysis is used when no frame could be captured.
	NoFrameAnalysis = "Comprehensive health analysis based on facial indicators and vital signs."
)

type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// Vitals is one scan's snapshot.
type Vitals struct {
	HeartRate            int           `json:"heart_rate"`
	HeartRateVariability int           `json:"heart_rate_variability"`
	RespiratoryRate      int           `json:"respiratory_rate"`
	BloodPressure        BloodPressure `json:"blood_pressure"`
	SkinTemperature      float64       `json:"skin_temperature"`
	OxygenSaturation     int           `json:"oxygen_saturation"`
	StressLevel          int           `json:"stress_level"`
	HappinessLevel       int           `json:"happiness_level"`
	AnxietyLevel         int           `json:"anxiety_level"`
	FatigueLevel         int           `json:"fatigue_level"`
	PainLevel            int           `json:"pain_level"`
	OverallHealth        string        `json:"overall_health"`
	Confidence           int           `json:"confidence"`
	RiskFactors          []string      `json:"risk_factors"`
	Recommendations      []string      `json:"recommendations"`
	AIAnalysis           string        `json:"ai_analysis"`
	CapturedAt           time.Time     `json:"captured_at"`
}

type Status struct {
	ID          uuid.UUID `json:"id"`
	State       State     `json:"state"`
	Permission  string    `json:"permission"`
	Scanning    bool      `json:"scanning"`
	Analyzing   bool      `json:"analyzing"`
	Description string    `json:"live_analysis,omitempty"`
	Vitals      *Vitals   `json:"vitals,omitempty"`
	Generation  uint64    `json:"generation"`
}
