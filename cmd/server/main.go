package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"healthguard-ai/internal/agent"
	"healthguard-ai/internal/config"
	"healthguard-ai/internal/intake"
	"healthguard-ai/internal/platform/httpx"
	"healthguard-ai/internal/platform/logger"
	"healthguard-ai/internal/realtime"
	"healthguard-ai/internal/report"
	"healthguard-ai/internal/scan"
	"healthguard-ai/internal/session"
	"healthguard-ai/internal/triage"
)

const housekeepingInterval = time.Minute

func main() {
	// 1. Infrastructure
	cfg := config.LoadConfig()
	log := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		File:        cfg.LogFile,
		ServiceName: "healthguard-ai",
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(log.Named("realtime"), cfg.AllowedOrigin)
	go hub.Run(ctx)

	// 2. Clients
	if cfg.VisionAPIKey == config.PlaceholderAPIKey {
		log.Warn("OPENAI_API_KEY is not set; scan descriptions will use the fallback text")
	}
	vision := agent.NewVisionClient(cfg.VisionAPIURL, cfg.VisionAPIKey, cfg.VisionModel, cfg.VisionTimeout, log.Named("vision"))
	rnd := agent.NewTimeSeededRandomizer()
	responder := agent.NewStubResponder(rnd)
	vitals := agent.NewStubVitals(rnd)
	reports := report.NewRenderer(cfg.ReportFontPaths, log.Named("report"))

	// 3. Sessions and handlers
	conversations := session.NewRegistry[*triage.Conversation]("triage", cfg.SessionIdleTTL, log)
	scans := session.NewRegistry[*scan.Session]("scan", cfg.SessionIdleTTL, log)
	forms := session.NewRegistry[*intake.Form]("intake", cfg.SessionIdleTTL, log)
	go conversations.RunHousekeeping(ctx, housekeepingInterval)
	go scans.RunHousekeeping(ctx, housekeepingInterval)
	go forms.RunHousekeeping(ctx, housekeepingInterval)

	triageHandler := triage.NewHandler(conversations, responder, hub, reports,
		triage.Timing{ReplyDelay: cfg.ReplyDelay, AssessmentDelay: cfg.AssessmentDelay}, log.Named("triage"))
	scanHandler := scan.NewHandler(scans, vision, vitals, hub, reports,
		scan.Timing{AnalysisDelay: cfg.AnalysisDelay, CaptureInterval: cfg.CaptureInterval}, log.Named("scan"))
	intakeHandler := intake.NewHandler(forms, hub, cfg.IntakeAck, log.Named("intake"))

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpx.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(httpx.CORS(cfg.AllowedOrigin))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/realtime", hub.ServeWS)
		triage.RegisterRoutes(r, triageHandler)
		scan.RegisterRoutes(r, scanHandler)
		intake.RegisterRoutes(r, intakeHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}

	conversations.CloseAll()
	scans.CloseAll()
	forms.CloseAll()
	log.Info("Server stopped")
}
