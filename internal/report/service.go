package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"healthguard-ai/internal/scan"
	"healthguard-ai/internal/triage"
)

const fontFamily = "DejaVu"

const disclaimer = "Demo output generated by simulated AI. Not a medical diagnosis."

var ErrNoFont = errors.New("no usable report font")

// Renderer builds PDF summaries of triage assessments and scan results.
type Renderer struct {
	fontPaths []string
	logger    *zap.Logger
}

func NewRenderer(fontPaths []string, logger *zap.Logger) *Renderer {
	return &Renderer{fontPaths: fontPaths, logger: logger}
}

func (r *Renderer) RenderAssessment(ctx context.Context, a triage.Assessment) ([]byte, error) {
	pdf, err := r.newDocument(ctx, "Health Assessment")
	if err != nil {
		return nil, err
	}
	w := &writer{pdf: pdf}

	w.line(12, fmt.Sprintf("Date: %s", stamp(a.CreatedAt)))
	w.line(12, fmt.Sprintf("Risk level: %s (confidence %d%%)", strings.ToUpper(string(a.RiskLevel)), a.Confidence))
	w.line(12, fmt.Sprintf("Urgency: %s", a.Urgency))
	w.gap(10)

	w.section("Identified symptoms", a.Symptoms)
	w.section("Recommendations", a.Recommendations)
	w.section("Next steps", a.NextSteps)

	return r.finish(pdf, w)
}

func (r *Renderer) RenderVitals(ctx context.Context, v scan.Vitals) ([]byte, error) {
	pdf, err := r.newDocument(ctx, "Health Scan Results")
	if err != nil {
		return nil, err
	}
	w := &writer{pdf: pdf}

	w.line(12, fmt.Sprintf("Captured: %s", stamp(v.CapturedAt)))
	w.line(12, fmt.Sprintf("Overall health: %s (confidence %d%%)", v.OverallHealth, v.Confidence))
	w.gap(10)

	w.section("Vital signs", []string{
		fmt.Sprintf("Heart rate: %d bpm", v.HeartRate),
		fmt.Sprintf("Heart rate variability: %d ms", v.HeartRateVariability),
		fmt.Sprintf("Respiratory rate: %d /min", v.RespiratoryRate),
		fmt.Sprintf("Blood pressure: %d/%d mmHg", v.BloodPressure.Systolic, v.BloodPressure.Diastolic),
		fmt.Sprintf("Skin temperature: %.1f F", v.SkinTemperature),
		fmt.Sprintf("Oxygen saturation: %d%%", v.OxygenSaturation),
	})
	w.section(wellnessHeading(), wellnessLines(v))
	w.section("Risk factors", v.RiskFactors)
	w.section("Recommendations", v.Recommendations)
	if v.AIAnalysis != "" {
		w.section("Visual analysis", []string{v.AIAnalysis})
	}

	return r.finish(pdf, w)
}

func wellnessHeading() string {
	return fmt.Sprintf("Wellness scores (%d-%d%%)", scan.ScoreRange.Min, scan.ScoreRange.Max)
}

func wellnessLines(v scan.Vitals) []string {
	return []string{
		fmt.Sprintf("Stress: %d%%", v.StressLevel),
		fmt.Sprintf("Happiness: %d%%", v.HappinessLevel),
		fmt.Sprintf("Anxiety: %d%%", v.AnxietyLevel),
		fmt.Sprintf("Fatigue: %d%%", v.FatigueLevel),
		fmt.Sprintf("Pain: %d%%", v.PainLevel),
	}
}

func (r *Renderer) newDocument(ctx context.Context, title string) (*gopdf.GoPdf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range r.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err == nil {
			r.logger.Debug("Report font loaded", zap.String("path", path))
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		r.logger.Error("Failed to load report font", zap.Strings("paths", r.fontPaths), zap.Error(fontErr))
		if fontErr == nil {
			return nil, ErrNoFont
		}
		return nil, fmt.Errorf("%w: %v", ErrNoFont, fontErr)
	}

	if err := pdf.SetFont(fontFamily, "", 20); err != nil {
		return nil, err
	}
	pdf.SetX(40)
	pdf.SetY(40)
	if err := pdf.Cell(nil, "HealthGuard AI: "+title); err != nil {
		return nil, err
	}
	pdf.Br(30)
	return pdf, nil
}

func (r *Renderer) finish(pdf *gopdf.GoPdf, w *writer) ([]byte, error) {
	if w.err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", w.err)
	}
	w.gap(15)
	w.line(9, disclaimer)
	if w.err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", w.err)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// writer keeps the first layout error so callers can chain lines.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

const (
	marginLeft = 40.0
	textWidth  = 500.0
	pageBottom = 790.0
)

func (w *writer) line(size float64, text string) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont(fontFamily, "", size); w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		if w.pdf.GetY() > pageBottom {
			w.pdf.AddPage()
			w.pdf.SetY(40)
		}
		w.pdf.SetX(marginLeft)
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.pdf.Br(size + 4)
	}
}

func (w *writer) gap(h float64) {
	if w.err == nil {
		w.pdf.Br(h)
	}
}

func (w *writer) section(title string, items []string) {
	w.line(14, title)
	if len(items) == 0 {
		w.line(11, "- none")
	}
	for _, item := range items {
		w.line(11, "- "+item)
	}
	w.gap(10)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02 15:04")
}
