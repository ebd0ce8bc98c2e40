package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "OPENAI_API_KEY", "REPLY_DELAY", "ASSESSMENT_DELAY",
		"ANALYSIS_DELAY", "CAPTURE_INTERVAL", "INTAKE_ACK", "REPORT_FONT_PATHS",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, PlaceholderAPIKey, cfg.VisionAPIKey)
	assert.Equal(t, 2*time.Second, cfg.ReplyDelay)
	assert.Equal(t, 3*time.Second, cfg.AssessmentDelay)
	assert.Equal(t, 4*time.Second, cfg.AnalysisDelay)
	assert.Equal(t, 5*time.Second, cfg.CaptureInterval)
	assert.Equal(t, 3*time.Second, cfg.IntakeAck)
	assert.Len(t, cfg.ReportFontPaths, 3)
	assert.Equal(t, "gpt-4-vision-preview", cfg.VisionModel)
}

func TestGetEnv_Unset(t *testing.T) {
	assert.Equal(t, PlaceholderAPIKey, getEnv("HEALTHGUARD_TEST_UNSET_KEY", PlaceholderAPIKey))
}

func TestGetDuration(t *testing.T) {
	t.Setenv("HG_DELAY_GO", "1500ms")
	t.Setenv("HG_DELAY_MS", "250")
	t.Setenv("HG_DELAY_BAD", "soon")

	assert.Equal(t, 1500*time.Millisecond, getDuration("HG_DELAY_GO", time.Second))
	assert.Equal(t, 250*time.Millisecond, getDuration("HG_DELAY_MS", time.Second))
	assert.Equal(t, time.Second, getDuration("HG_DELAY_BAD", time.Second))
}

func TestGetList(t *testing.T) {
	t.Setenv("HG_FONTS", " /a.ttf, ,/b.ttf ")
	assert.Equal(t, []string{"/a.ttf", "/b.ttf"}, getList("HG_FONTS", nil))
}
