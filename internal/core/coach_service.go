package core

import (
	"context"
	"fmt"
	"log"

	"github.com/glowupapp/server/internal/chat"
	"github.com/glowupapp/server/internal/entitlement"
	"github.com/glowupapp/server/internal/store"
)

// CoachService runs the streaming coach chat: it gates each outgoing message
// on the entitlement engine, folds the streamed reply into the conversation
// via the reconciler, and commits the message quota only when the stream
// completes normally.
type CoachService struct {
	engine  *entitlement.Engine
	llm     Generator
	dbStore *store.SQLiteStore
}

func NewCoachService(engine *entitlement.Engine, llm Generator, db *store.SQLiteStore) *CoachService {
	return &CoachService{
		engine:  engine,
		llm:     llm,
		dbStore: db,
	}
}

// NewSession starts a fresh transcript seeded with the personalized coach
// greeting. Transcripts are per-screen and deliberately not persisted.
func (s *CoachService) NewSession() *chat.Session {
	name := "there"
	if prefs, err := s.dbStore.GetPreferences(); err != nil {
		log.Printf("Could not load preferences for coach greeting: %v", err)
	} else if prefs != nil {
		name = prefs.Name
	}
	greeting := fmt.Sprintf("Hey, %s! I'm your GlowUp Coach. What's on your mind today?", name)
	return chat.NewSession(greeting)
}

// Send gates, records, and answers one user message. A denied Decision is a
// normal result with a nil Attachment. On success the returned Attachment is
// already consuming the reply stream; onChunk, if non-nil, observes each raw
// fragment in delivery order as it arrives.
//
// The coach_message counter is committed exactly once, after the final chunk
// has been applied, and never when the stream aborts or is cancelled.
func (s *CoachService) Send(ctx context.Context, session *chat.Session, text string, onChunk func(chunk string)) (*chat.Attachment, entitlement.Decision, error) {
	tier, err := s.dbStore.GetTier()
	if err != nil {
		return nil, entitlement.Decision{}, fmt.Errorf("failed to read tier: %w", err)
	}

	decision := s.engine.Check(entitlement.FeatureCoachMessage, tier)
	if !decision.Allowed {
		return nil, decision, nil
	}

	if err := session.AppendUserTurn(text); err != nil {
		return nil, decision, err
	}

	prefs, err := s.dbStore.GetPreferences()
	if err != nil {
		log.Printf("Could not load preferences for coach prompt: %v", err)
	}

	stream, err := s.llm.CoachStream(ctx, session.History(), prefs)
	if err != nil {
		// The request never opened, so no quota is consumed. Leave an
		// apology turn so the transcript stays coherent on screen.
		handle := session.AppendPlaceholder()
		if replaceErr := session.ReplaceText(handle, chat.FallbackApology); replaceErr != nil {
			log.Printf("Could not place fallback message: %v", replaceErr)
		}
		return nil, decision, fmt.Errorf("failed to open coach stream: %w", err)
	}

	if onChunk != nil {
		stream = &observedStream{inner: stream, observe: onChunk}
	}

	attachment, err := chat.Attach(session, stream, func() {
		if err := s.engine.Commit(entitlement.FeatureCoachMessage); err != nil {
			log.Printf("Failed to commit coach message quota: %v", err)
		}
	})
	if err != nil {
		return nil, decision, err
	}
	return attachment, decision, nil
}

// Remaining reports how many coach messages are left for the quota text
// under the input field.
func (s *CoachService) Remaining() int {
	tier, err := s.dbStore.GetTier()
	if err != nil {
		log.Printf("Failed to read tier for coach quota text: %v", err)
		tier = entitlement.TierFree
	}
	return s.engine.Remaining(entitlement.FeatureCoachMessage, tier)
}

// observedStream lets a transport watch fragments without touching the
// reconciler contract.
type observedStream struct {
	inner   chat.FragmentStream
	observe func(chunk string)
}

func (o *observedStream) Next() (string, error) {
	chunk, err := o.inner.Next()
	if err != nil {
		return "", err
	}
	o.observe(chunk)
	return chunk, nil
}
