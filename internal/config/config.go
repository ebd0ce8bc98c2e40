package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PlaceholderAPIKey is used when OPENAI_API_KEY is not set. Vision calls made
// with it fail and the scan falls back to local text.
const PlaceholderAPIKey = "your-api-key-here"

type Config struct {
	Port          string
	AllowedOrigin string

	VisionAPIKey  string
	VisionAPIURL  string
	VisionModel   string
	VisionTimeout time.Duration

	ReplyDelay      time.Duration
	AssessmentDelay time.Duration
	AnalysisDelay   time.Duration
	CaptureInterval time.Duration
	IntakeAck       time.Duration
	SessionIdleTTL  time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string

	ReportFontPaths []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or default values")
	}

	return &Config{
		Port:          getNonEmpty("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),

		VisionAPIKey:  getNonEmpty("OPENAI_API_KEY", PlaceholderAPIKey),
		VisionAPIURL:  getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		VisionModel:   getEnv("VISION_MODEL", "gpt-4-vision-preview"),
		VisionTimeout: getDuration("VISION_TIMEOUT", 30*time.Second),

		ReplyDelay:      getDuration("REPLY_DELAY", 2*time.Second),
		AssessmentDelay: getDuration("ASSESSMENT_DELAY", 3*time.Second),
		AnalysisDelay:   getDuration("ANALYSIS_DELAY", 4*time.Second),
		CaptureInterval: getDuration("CAPTURE_INTERVAL", 5*time.Second),
		IntakeAck:       getDuration("INTAKE_ACK", 3*time.Second),
		SessionIdleTTL:  getDuration("SESSION_IDLE_TTL", 30*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		ReportFontPaths: getList("REPORT_FONT_PATHS", []string{
			"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		}),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getNonEmpty(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// getDuration accepts Go duration strings ("2s", "1500ms") or bare integers
// meaning milliseconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if d, err := time.ParseDuration(value + "ms"); err == nil {
		return d
	}
	log.Printf("Invalid duration for %s: %q, using %s", key, value, fallback)
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
