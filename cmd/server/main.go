package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowupapp/server/internal/api"
	"github.com/glowupapp/server/internal/clock"
	"github.com/glowupapp/server/internal/config"
	"github.com/glowupapp/server/internal/core"
	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/onboarding"
	"github.com/glowupapp/server/internal/payment"
	"github.com/glowupapp/server/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	dayClock := clock.System{}

	// Entitlement engine with the reference policy table, persisting
	// per-day counters through the store.
	engine := entitlement.New(entitlement.DefaultPolicies(), dayClock, dbStore)

	// Onboarding: restore a finished flow from a previous run, otherwise
	// start fresh. Finalization persists the preferences and marks the
	// flow complete exactly once.
	machine := newOnboardingMachine(dbStore)

	checkout := &payment.HostedCheckout{URL: config.AppConfig.CheckoutURL}

	// Feature services
	coachService := core.NewCoachService(engine, llmService, dbStore)
	selfieService := core.NewSelfieService(engine, llmService, dbStore)
	outfitService := core.NewOutfitService(engine, llmService, dbStore)
	planService := core.NewPlanService(engine, llmService, dbStore)
	tipService := core.NewTipService(llmService, dbStore, dayClock)
	profileService := core.NewProfileService(dbStore, checkout, dayClock)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(
		coachService, selfieService, outfitService,
		planService, tipService, profileService,
		machine, engine,
	)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming chat connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

func newOnboardingMachine(dbStore *store.SQLiteStore) *onboarding.Machine {
	onComplete := func(prefs onboarding.Preferences) error {
		if err := dbStore.SetPreferences(prefs); err != nil {
			return err
		}
		return dbStore.SetOnboardingComplete()
	}

	complete, err := dbStore.OnboardingComplete()
	if err != nil {
		log.Printf("Could not read onboarding state, starting fresh: %v", err)
		return onboarding.New(onComplete)
	}
	if complete {
		prefs, err := dbStore.GetPreferences()
		if err != nil || prefs == nil {
			log.Printf("Onboarding marked complete but preferences missing, starting fresh (err: %v)", err)
			return onboarding.New(onComplete)
		}
		return onboarding.Restored(*prefs, onComplete)
	}
	return onboarding.New(onComplete)
}
