package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes live under /api. The app is single-user: state belongs
	// to the device this server backs, so there is no auth layer.
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Onboarding flow
		r.Get("/onboarding", apiHandler.OnboardingStatusHandler)
		r.Post("/onboarding/{step}", apiHandler.OnboardingStepHandler)
		r.Post("/onboarding/finish", apiHandler.OnboardingFinishHandler)

		// Profile, tier, entitlements
		r.Get("/profile", apiHandler.ProfileHandler)
		r.Get("/entitlements", apiHandler.EntitlementsHandler)
		r.Post("/checkout", apiHandler.CheckoutHandler)
		r.Post("/subscription/confirm", apiHandler.ConfirmSubscriptionHandler)

		// Home screen
		r.Get("/tip", apiHandler.TipHandler)
		r.Get("/reminder", apiHandler.ReminderHandler)

		// Selfie analyzer
		r.Post("/selfie/analyze", apiHandler.AnalyzeSelfieHandler)

		// Outfit builder
		r.Get("/outfit", apiHandler.OutfitStateHandler)
		r.Post("/outfit/items", apiHandler.SelectOutfitItemHandler)
		r.Delete("/outfit/items/{item}", apiHandler.DeselectOutfitItemHandler)
		r.Post("/outfit/build", apiHandler.BuildOutfitHandler)

		// Glow-up plan
		r.Get("/plan", apiHandler.PlanHandler)

		// Coach chat (streaming)
		r.Get("/coach/ws", apiHandler.CoachWSHandler)
	})

	return r
}
