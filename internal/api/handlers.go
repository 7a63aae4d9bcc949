package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glowupapp/server/internal/core"
	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/onboarding"
)

type APIHandler struct {
	coach      *core.CoachService
	selfie     *core.SelfieService
	outfit     *core.OutfitService
	plan       *core.PlanService
	tip        *core.TipService
	profile    *core.ProfileService
	onboarding *onboarding.Machine
	engine     *entitlement.Engine
}

func NewAPIHandler(
	coach *core.CoachService,
	selfie *core.SelfieService,
	outfit *core.OutfitService,
	plan *core.PlanService,
	tip *core.TipService,
	profile *core.ProfileService,
	machine *onboarding.Machine,
	engine *entitlement.Engine,
) *APIHandler {
	return &APIHandler{
		coach:      coach,
		selfie:     selfie,
		outfit:     outfit,
		plan:       plan,
		tip:        tip,
		profile:    profile,
		onboarding: machine,
		engine:     engine,
	}
}

// writeDenied maps a denied entitlement Decision to the upgrade prompt the
// client renders. Denial is a normal outcome, not a server error.
func writeDenied(w http.ResponseWriter, decision entitlement.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   string(decision.Reason),
		"feature": string(decision.Feature),
	})
}

// Onboarding handlers. Each drives one step of the forward-only flow;
// validation errors come back as 400 with the machine's reason.

type onboardingInput struct {
	Name      string `json:"name,omitempty"`
	Age       int    `json:"age,omitempty"`
	Goal      string `json:"goal,omitempty"`
	Style     string `json:"style,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	Photo     string `json:"photo,omitempty"`
}

func (h *APIHandler) OnboardingStatusHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"step":       h.onboarding.Step().String(),
		"complete":   h.onboarding.Finalized(),
		"goals":      onboarding.Goals,
		"styles":     onboarding.StyleVibes,
		"challenges": onboarding.Challenges,
	})
}

func (h *APIHandler) OnboardingStepHandler(w http.ResponseWriter, r *http.Request) {
	var in onboardingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var err error
	switch step := chi.URLParam(r, "step"); step {
	case "name":
		err = h.onboarding.SetName(in.Name)
	case "age":
		err = h.onboarding.SetAge(in.Age)
	case "goal":
		err = h.onboarding.ChooseGoal(in.Goal)
	case "style":
		err = h.onboarding.ChooseStyleVibe(in.Style)
	case "challenge":
		err = h.onboarding.ChooseChallenge(in.Challenge)
	case "photo":
		err = h.onboarding.AttachPhoto(in.Photo)
	default:
		http.Error(w, "Unknown onboarding step: "+step, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"step": h.onboarding.Step().String()})
}

func (h *APIHandler) OnboardingFinishHandler(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.onboarding.Finalize()
	if err != nil {
		var wrongStep *onboarding.WrongStepError
		if errors.As(err, &wrongStep) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error finalizing onboarding: %v", err)
		http.Error(w, "Failed to finish onboarding", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(prefs)
}

// Profile, tier and entitlement handlers.

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.profile.Preferences()
	if err != nil {
		log.Printf("Error reading preferences: %v", err)
		http.Error(w, "Failed to read profile", http.StatusInternalServerError)
		return
	}
	tier, err := h.profile.Tier()
	if err != nil {
		log.Printf("Error reading tier: %v", err)
		http.Error(w, "Failed to read profile", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"tier":        tier,
		"preferences": prefs,
	})
}

func (h *APIHandler) EntitlementsHandler(w http.ResponseWriter, r *http.Request) {
	tier, err := h.profile.Tier()
	if err != nil {
		log.Printf("Error reading tier: %v", err)
		http.Error(w, "Failed to read entitlements", http.StatusInternalServerError)
		return
	}

	type featureStatus struct {
		Limit     int `json:"limit"`
		Remaining int `json:"remaining"`
	}
	features := make(map[string]featureStatus)
	for _, feature := range []entitlement.Feature{
		entitlement.FeatureSelfieAnalysis,
		entitlement.FeatureCoachMessage,
		entitlement.FeatureOutfitItem,
		entitlement.FeaturePlanDay,
	} {
		features[string(feature)] = featureStatus{
			Limit:     h.engine.Limit(feature, tier),
			Remaining: h.engine.Remaining(feature, tier),
		}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"tier":     tier,
		"features": features,
	})
}

func (h *APIHandler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	url, err := h.profile.StartCheckout(r.Context())
	if err != nil {
		log.Printf("Error starting checkout: %v", err)
		http.Error(w, "Failed to start checkout", http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"redirectUrl": url})
}

func (h *APIHandler) ConfirmSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.profile.ConfirmPremium(); err != nil {
		log.Printf("Error confirming subscription: %v", err)
		http.Error(w, "Failed to confirm subscription", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"tier": string(entitlement.TierPremium)})
}

// Home screen handlers: daily tip and reminder.

func (h *APIHandler) TipHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"tip": h.tip.Tip(r.Context())})
}

func (h *APIHandler) ReminderHandler(w http.ResponseWriter, r *http.Request) {
	remind, err := h.profile.ShouldRemind()
	if err != nil {
		log.Printf("Error checking reminder state: %v", err)
		http.Error(w, "Failed to check reminder", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]bool{"remind": remind})
}

// Selfie analysis.

type analyzeRequest struct {
	Image string `json:"image"` // base64 JPEG
}

func (h *APIHandler) AnalyzeSelfieHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Image == "" {
		http.Error(w, "Please upload a selfie first", http.StatusBadRequest)
		return
	}

	result, decision, err := h.selfie.Analyze(r.Context(), req.Image)
	if err != nil {
		log.Printf("Error analyzing selfie: %v", err)
		http.Error(w, "Failed to get feedback from AI. Please try again.", http.StatusBadGateway)
		return
	}
	if !decision.Allowed {
		writeDenied(w, decision)
		return
	}
	json.NewEncoder(w).Encode(result)
}

// Outfit builder.

type outfitItemRequest struct {
	Item string `json:"item"`
}

func (h *APIHandler) OutfitStateHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"wardrobe":  core.Wardrobe,
		"occasions": core.Occasions,
		"selected":  h.outfit.SelectedItems(),
	})
}

func (h *APIHandler) SelectOutfitItemHandler(w http.ResponseWriter, r *http.Request) {
	var req outfitItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	decision, err := h.outfit.SelectItem(req.Item)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !decision.Allowed {
		writeDenied(w, decision)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"selected":  h.outfit.SelectedItems(),
		"remaining": decision.Remaining,
	})
}

func (h *APIHandler) DeselectOutfitItemHandler(w http.ResponseWriter, r *http.Request) {
	h.outfit.DeselectItem(chi.URLParam(r, "item"))
	json.NewEncoder(w).Encode(map[string]any{"selected": h.outfit.SelectedItems()})
}

type buildOutfitRequest struct {
	Occasion string `json:"occasion"`
}

func (h *APIHandler) BuildOutfitHandler(w http.ResponseWriter, r *http.Request) {
	var req buildOutfitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	outfit, err := h.outfit.Build(r.Context(), req.Occasion)
	if err != nil {
		if errors.Is(err, core.ErrTooFewItems) || errors.Is(err, core.ErrBadOccasion) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error building outfit: %v", err)
		http.Error(w, "Couldn't create an outfit. The AI might be busy, try again!", http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"outfit": outfit})
}

// Glow-up plan.

func (h *APIHandler) PlanHandler(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plan.Plan(r.Context())
	if err != nil {
		log.Printf("Error generating plan: %v", err)
		http.Error(w, "Failed to generate your plan. Please check your connection.", http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"days": plan})
}
