package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/glowupapp/server/internal/chat"
	"github.com/glowupapp/server/internal/config"
	"github.com/glowupapp/server/internal/onboarding"
)

const (
	defaultModelName = "gemini-2.5-flash"

	coachSystemInstruction = "You are GlowUp Coach, a friendly and wise big-sister-style coach for teens. " +
		"You give advice on confidence, social skills, motivation, and handling school or friend situations. " +
		"Keep your responses concise, empathetic, and positive. %s " +
		"End with an encouraging sentence or an open-ended question."
)

// AnalysisResult is the structured selfie feedback returned by the model.
type AnalysisResult struct {
	OutfitFeedback      string `json:"outfitFeedback"`
	GroomingSuggestions string `json:"groomingSuggestions"`
	HairstyleIdeas      string `json:"hairstyleIdeas"`
	AestheticIdeas      string `json:"aestheticIdeas"`
}

// PlanDay is one day of the 7-day glow-up plan.
type PlanDay struct {
	Skincare  string `json:"skincare"`
	Hygiene   string `json:"hygiene"`
	Goals     string `json:"goals"`
	Mindset   string `json:"mindset"`
	Challenge string `json:"challenge"`
}

// PlanLength is the number of days in a generated plan.
const PlanLength = 7

// Plan holds the plan days in order; index 0 is Day 1.
type Plan [PlanLength]PlanDay

// Generator is the AI content collaborator. Failures surface as a single
// error, never partial data; callers must not commit quota on failure.
type Generator interface {
	AnalyzeSelfie(ctx context.Context, imageBase64 string, prefs *onboarding.Preferences) (*AnalysisResult, error)
	GeneratePlan(ctx context.Context, prefs *onboarding.Preferences) (Plan, error)
	BuildOutfit(ctx context.Context, items []string, occasion string, prefs *onboarding.Preferences) (string, error)
	DailyTip(ctx context.Context, prefs *onboarding.Preferences) (string, error)
	CoachStream(ctx context.Context, history []chat.Turn, prefs *onboarding.Preferences) (chat.FragmentStream, error)
}

type LLMService struct {
	client *genai.Client
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{
		client: client,
	}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (s *LLMService) AnalyzeSelfie(ctx context.Context, imageBase64 string, prefs *onboarding.Preferences) (*AnalysisResult, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("selfie image is not valid base64: %w", err)
	}

	personalization := ""
	if prefs != nil {
		personalization = fmt.Sprintf(
			"The user's name is %s, they are %d years old. Their main goal is %s, their style vibe is %s, and they're challenged by %s. Tailor the advice to this specific user.",
			prefs.Name, prefs.Age, prefs.Goal, prefs.StyleVibe, prefs.Challenge)
	}

	model := s.client.GenerativeModel(defaultModelName)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"outfitFeedback":      {Type: genai.TypeString, Description: "Feedback on the user's current outfit."},
				"groomingSuggestions": {Type: genai.TypeString, Description: "Tips for grooming and personal care."},
				"hairstyleIdeas":      {Type: genai.TypeString, Description: "Suggestions for hairstyles that might suit them."},
				"aestheticIdeas":      {Type: genai.TypeString, Description: "Ideas for style aesthetics they could explore."},
			},
			Required: []string{"outfitFeedback", "groomingSuggestions", "hairstyleIdeas", "aestheticIdeas"},
		},
	}

	prompt := fmt.Sprintf(
		"Analyze this selfie of a teen. Provide constructive, positive, and encouraging feedback. Focus on style and grooming. Be friendly and act as a helpful AI assistant. %s "+
			"Structure your response as a JSON object with these exact keys: \"outfitFeedback\", \"groomingSuggestions\", \"hairstyleIdeas\", \"aestheticIdeas\". Each value should be a string with 2-3 detailed suggestions.",
		personalization)

	resp, err := model.GenerateContent(ctx, genai.ImageData("jpeg", imageData), genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini selfie analysis request failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, fmt.Errorf("selfie analysis: %w", err)
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("failed to decode selfie analysis JSON: %w", err)
	}
	return &result, nil
}

func (s *LLMService) GeneratePlan(ctx context.Context, prefs *onboarding.Preferences) (Plan, error) {
	personalization := ""
	if prefs != nil {
		personalization = fmt.Sprintf(
			"The user's name is %s, age %d. Their main goal is %s. Tailor the plan's mindset tips and challenges towards this goal.",
			prefs.Name, prefs.Age, prefs.Goal)
	}

	daySchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"skincare":  {Type: genai.TypeString, Description: "A short, actionable skincare tip."},
			"hygiene":   {Type: genai.TypeString, Description: "A short, actionable hygiene tip."},
			"goals":     {Type: genai.TypeString, Description: "A hydration or sleep goal for the day."},
			"mindset":   {Type: genai.TypeString, Description: "A positive mindset tip or affirmation."},
			"challenge": {Type: genai.TypeString, Description: "A small, fun challenge for the day."},
		},
		Required: []string{"skincare", "hygiene", "goals", "mindset", "challenge"},
	}

	properties := make(map[string]*genai.Schema, PlanLength)
	required := make([]string, 0, PlanLength)
	for i := 1; i <= PlanLength; i++ {
		label := fmt.Sprintf("Day %d", i)
		properties[label] = daySchema
		required = append(required, label)
	}

	model := s.client.GenerativeModel(defaultModelName)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: properties,
			Required:   required,
		},
	}

	prompt := fmt.Sprintf(
		"Create a comprehensive, 7-day \"glow up\" plan for a teenager. The tone should be motivational, friendly, and supportive. %s "+
			"Structure the response as a JSON object. The root object should have keys for each day (\"Day 1\", \"Day 2\", etc.). "+
			"Each day's value should be an object with these keys: \"skincare\", \"hygiene\", \"goals\" (hydration/sleep), \"mindset\", and \"challenge\". Provide a short, actionable tip for each.",
		personalization)

	var plan Plan
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return plan, fmt.Errorf("gemini plan generation request failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return plan, fmt.Errorf("plan generation: %w", err)
	}

	var byLabel map[string]PlanDay
	if err := json.Unmarshal([]byte(text), &byLabel); err != nil {
		return plan, fmt.Errorf("failed to decode plan JSON: %w", err)
	}
	for i := 0; i < PlanLength; i++ {
		day, ok := byLabel[fmt.Sprintf("Day %d", i+1)]
		if !ok {
			return plan, fmt.Errorf("plan response is missing Day %d", i+1)
		}
		plan[i] = day
	}
	return plan, nil
}

func (s *LLMService) BuildOutfit(ctx context.Context, items []string, occasion string, prefs *onboarding.Preferences) (string, error) {
	personalization := ""
	if prefs != nil {
		personalization = fmt.Sprintf(
			"The user's name is %s, age %d, and their style vibe is %s. Create an outfit that fits this aesthetic.",
			prefs.Name, prefs.Age, prefs.StyleVibe)
	}

	prompt := fmt.Sprintf(
		"I'm a teen trying to build an outfit. My available items are: %s. The occasion is: %s. %s "+
			"Create a cool, stylish outfit combination using these items. Suggest specific, popular, and trendy clothing items and brands that a teen would recognize, "+
			"for example, 'a Nike Tech fleece hoodie' or 'Air Jordan 1 sneakers'. Describe the full outfit, why it works, and suggest one accessory to complete the look. Be trendy and encouraging.",
		strings.Join(items, ", "), occasion, personalization)

	model := s.client.GenerativeModel(defaultModelName)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini outfit request failed: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("outfit generation: %w", err)
	}
	return text, nil
}

func (s *LLMService) DailyTip(ctx context.Context, prefs *onboarding.Preferences) (string, error) {
	personalization := "Give a general tip about confidence or style."
	if prefs != nil {
		personalization = fmt.Sprintf(
			"The user's name is %s, and their main goal is %s. Give them a tip related to that.",
			prefs.Name, prefs.Goal)
	}

	prompt := fmt.Sprintf(
		"Generate one short, actionable, and inspiring \"glow up\" tip for a teenager. Make it friendly and encouraging. %s The tip should be no more than two sentences.",
		personalization)

	model := s.client.GenerativeModel(defaultModelName)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini daily tip request failed: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("daily tip: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// CoachStream opens a streamed coach reply. The last turn of history must be
// the user message being answered; everything before it becomes the chat
// history sent to the model.
func (s *LLMService) CoachStream(ctx context.Context, history []chat.Turn, prefs *onboarding.Preferences) (chat.FragmentStream, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("chat history is empty")
	}
	last := history[len(history)-1]
	if last.Sender != chat.SenderUser {
		return nil, fmt.Errorf("last turn in history is not from the user")
	}

	personalization := ""
	if prefs != nil {
		personalization = fmt.Sprintf(
			"You are talking to %s, who is %d. Remember, you're helping them with their goal of %s and their challenge of %s.",
			prefs.Name, prefs.Age, prefs.Goal, prefs.Challenge)
	}

	model := s.client.GenerativeModel(defaultModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fmt.Sprintf(coachSystemInstruction, personalization))},
	}

	chatSession := model.StartChat()
	for _, turn := range history[:len(history)-1] {
		chatSession.History = append(chatSession.History, &genai.Content{
			Role:  string(turn.Sender),
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	iter := chatSession.SendMessageStream(ctx, genai.Text(last.Text))
	return &geminiStream{iter: iter}, nil
}

// geminiStream adapts the genai response iterator to chat.FragmentStream.
type geminiStream struct {
	iter *genai.GenerateContentResponseIterator
}

func (g *geminiStream) Next() (string, error) {
	for {
		resp, err := g.iter.Next()
		if err == iterator.Done {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream failed: %w", err)
		}
		text, err := responseText(resp)
		if err != nil {
			// Non-text interludes (e.g. safety metadata) are skipped, not fatal.
			continue
		}
		return text, nil
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model response was empty")
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			builder.WriteString(string(txt))
		}
	}
	if builder.Len() == 0 {
		return "", fmt.Errorf("model response had no text parts")
	}
	return builder.String(), nil
}
