package agent

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"healthguard-ai/internal/scan"
	"healthguard-ai/internal/triage"
)

// Randomizer is a mutex-guarded random source shared by the stubs.
type Randomizer struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandomizer(seed uint64) *Randomizer {
	return &Randomizer{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func NewTimeSeededRandomizer() *Randomizer {
	return NewRandomizer(uint64(time.Now().UnixNano()))
}

// IntRange returns a uniform int in [min, max].
func (r *Randomizer) IntRange(min, max int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.r.IntN(max-min+1)
}

// FloatRange returns a uniform float in [min, max].
func (r *Randomizer) FloatRange(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.r.Float64()*(max-min)
}

func (r *Randomizer) Pick(items []string) string {
	return items[r.IntRange(0, len(items)-1)]
}

var ReplyPool = []string{
	"I understand you're experiencing some symptoms. Based on what you've described, I'd like to gather more information to provide a better assessment.",
	"Thank you for sharing that information. I've analyzed your symptoms and any uploaded documents. Let me provide you with a preliminary assessment.",
	"I can see you've uploaded medical documents. I'm processing the information to provide you with relevant insights and recommendations.",
	"Based on your symptoms, I recommend monitoring your condition closely. Here are some immediate steps you can take while considering professional medical consultation.",
}

// AssessableTiers are the tiers the stub picks from; critical is never chosen.
var AssessableTiers = []triage.RiskTier{triage.RiskLow, triage.RiskMedium, triage.RiskHigh}

var (
	AssessmentSymptoms = []string{
		"Reported pain or discomfort",
		"Possible inflammatory response",
		"Stress indicators present",
	}
	AssessmentRecommendations = []string{
		"Monitor symptoms closely",
		"Stay hydrated and rest",
		"Consider over-the-counter pain relief if appropriate",
		"Seek medical attention if symptoms worsen",
	}
	AssessmentNextSteps = []string{
		"Document symptom progression",
		"Take temperature if fever suspected",
		"Contact healthcare provider if concerned",
		"Call emergency services if symptoms are severe",
	}
)

// StubResponder answers chat messages with canned text and random
// assessments.
type StubResponder struct {
	rnd *Randomizer
}

func NewStubResponder(rnd *Randomizer) *StubResponder {
	return &StubResponder{rnd: rnd}
}

func (s *StubResponder) Reply(text string, attachmentCount int) string {
	return s.rnd.Pick(ReplyPool)
}

func (s *StubResponder) Assess(text string) triage.Assessment {
	tier := AssessableTiers[s.rnd.IntRange(0, len(AssessableTiers)-1)]
	return triage.Assessment{
		RiskLevel:       tier,
		Confidence:      s.rnd.IntRange(75, 95),
		Symptoms:        append([]string(nil), AssessmentSymptoms...),
		Recommendations: append([]string(nil), AssessmentRecommendations...),
		Urgency:         tier.Urgency(),
		NextSteps:       append([]string(nil), AssessmentNextSteps...),
	}
}

// StubVitals draws every vitals field from its documented range.
type StubVitals struct {
	rnd *Randomizer
}

func NewStubVitals(rnd *Randomizer) *StubVitals {
	return &StubVitals{rnd: rnd}
}

func (s *StubVitals) Estimate(analysis string) scan.Vitals {
	in := func(r scan.Range) int { return s.rnd.IntRange(r.Min, r.Max) }

	temp := math.Round(s.rnd.FloatRange(scan.SkinTempMin, scan.SkinTempMax)*10) / 10

	return scan.Vitals{
		HeartRate:            in(scan.HeartRateRange),
		HeartRateVariability: in(scan.HRVRange),
		RespiratoryRate:      in(scan.RespiratoryRange),
		BloodPressure: scan.BloodPressure{
			Systolic:  in(scan.SystolicRange),
			Diastolic: in(scan.DiastolicRange),
		},
		SkinTemperature:  temp,
		OxygenSaturation: in(scan.OxygenSaturationRange),
		StressLevel:      in(scan.ScoreRange),
		HappinessLevel:   in(scan.ScoreRange),
		AnxietyLevel:     in(scan.ScoreRange),
		FatigueLevel:     in(scan.ScoreRange),
		PainLevel:        in(scan.ScoreRange),
		OverallHealth:    s.rnd.Pick(scan.OverallHealthLabels),
		Confidence:       in(scan.ConfidenceRange),
		RiskFactors:      s.prefix(scan.RiskFactorPool, 1, 3),
		Recommendations:  s.prefix(scan.RecommendationPool, 2, 4),
		AIAnalysis:       analysis,
	}
}

// prefix returns the first n items of pool with n uniform in [min, max].
func (s *StubVitals) prefix(pool []string, min, max int) []string {
	n := s.rnd.IntRange(min, max)
	return append([]string(nil), pool[:n]...)
}
