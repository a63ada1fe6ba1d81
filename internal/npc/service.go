package npc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/logger"
)

const maxGenerationAttempts = 3

const generationSystemPrompt = "You are a D&D 5e NPC generator. Return STRICT JSON that matches the schema. " +
	"Level must be between 1 and 5. Stats should be plausible for the class and level " +
	"(8–18 typical, no dumps below 6). Do not include any fields not in the schema."

const randomUserPrompt = "Create a creative, memorable NPC for a 5e fantasy setting. Feel free to surprise me."

const (
	randomTemperature   = 0.9
	promptedTemperature = 0.2
)

// GenerationError is the client-facing failure after the attempt budget is
// exhausted. Diagnostics holds one entry per failed attempt.
type GenerationError struct {
	Attempts    int
	Diagnostics []string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate valid NPC JSON after %d attempts", e.Attempts)
}

// PortraitDispatcher triggers portrait generation for a freshly created NPC.
// Implementations decide whether a failed inline attempt is enqueued for a
// durable retry or is terminal.
type PortraitDispatcher interface {
	Dispatch(ctx context.Context, npcID string)
}

type Service struct {
	repo      *Repo
	provider  ai.Provider
	portraits PortraitDispatcher
	log       *logger.Logger
}

func NewService(repo *Repo, provider ai.Provider, portraits PortraitDispatcher, log *logger.Logger) *Service {
	return &Service{repo: repo, provider: provider, portraits: portraits, log: log}
}

// GenerateResult carries the persisted record plus the ephemeral free-text
// appearance description, which is returned to the caller but never stored.
type GenerateResult struct {
	Npc            *Npc
	AppearanceDesc string
}

// Generate drives the bounded retry loop against the completion provider,
// persists the first payload that parses and validates, and dispatches the
// portrait pipeline once. An empty promptText selects random mode with a
// generic creative instruction and elevated temperature.
func (s *Service) Generate(ctx context.Context, ownerID uint64, promptText string) (*GenerateResult, error) {
	promptText = strings.TrimSpace(promptText)
	isRandom := promptText == ""

	userPrompt := promptText
	temperature := promptedTemperature
	if isRandom {
		userPrompt = randomUserPrompt
		temperature = randomTemperature
	}

	var payload *Payload
	diagnostics := make([]string, 0, maxGenerationAttempts)

	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		raw, err := s.provider.Chat(ctx, ai.ChatRequest{
			Messages: []ai.Message{
				{Role: ai.RoleSystem, Content: generationSystemPrompt},
				{Role: ai.RoleUser, Content: userPrompt},
			},
			Temperature: temperature,
			Schema:      &ai.SchemaSpec{Name: "npc_schema", Schema: GenerationSchema},
		})
		if err != nil {
			var se *ai.StatusError
			if errors.As(err, &se) {
				diagnostics = append(diagnostics, fmt.Sprintf("OpenAI error (HTTP %d): %s", se.StatusCode, se.Body))
			} else {
				diagnostics = append(diagnostics, fmt.Sprintf("OpenAI error: %v", err))
			}
			s.log.Error("npc generation call failed", "attempt", attempt, "error", err)
			continue
		}

		var decoded any
		if jsonErr := json.Unmarshal([]byte(raw), &decoded); jsonErr != nil || !ValidatePayload(decoded) {
			diagnostics = append(diagnostics, fmt.Sprintf("invalid payload on attempt %d: %s", attempt, raw))
			s.log.Warn("npc generation invalid payload", "attempt", attempt)
			continue
		}

		p, decodeErr := DecodePayload([]byte(raw))
		if decodeErr != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("invalid payload on attempt %d: %s", attempt, raw))
			s.log.Warn("npc generation payload decode failed", "attempt", attempt, "error", decodeErr)
			continue
		}

		payload = p
		break
	}

	if payload == nil {
		return nil, &GenerationError{Attempts: maxGenerationAttempts, Diagnostics: diagnostics}
	}

	n := payload.toRecord(ownerID)
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.log.Info("npc created", "npc_id", n.ID, "name", n.Name, "random", isRandom)

	// Best-effort portrait kickoff; the record is returned with or without
	// a portrait attached.
	if s.portraits != nil {
		s.portraits.Dispatch(ctx, n.ID)
		if fresh, err := s.repo.FindByID(ctx, n.ID); err == nil {
			n = fresh
		}
	}

	return &GenerateResult{Npc: n, AppearanceDesc: payload.AppearanceDesc}, nil
}

func (p *Payload) toRecord(ownerID uint64) *Npc {
	return &Npc{
		ID:          uuid.NewString(),
		OwnerUserID: ownerID,

		Name:            p.Name,
		Race:            p.Race,
		Subrace:         p.Subrace,
		Class:           p.Class,
		Level:           p.Level,
		Gender:          p.Gender,
		Age:             p.Age,
		Alignment:       p.Alignment,
		Background:      p.Background,
		PersonalityType: p.PersonalityType,
		Bio:             p.Bio,
		ShortPitch:      p.ShortPitch,

		StrScore: statOrDefault(p.Stats.Str),
		DexScore: statOrDefault(p.Stats.Dex),
		ConScore: statOrDefault(p.Stats.Con),
		IntScore: statOrDefault(p.Stats.Int),
		WisScore: statOrDefault(p.Stats.Wis),
		ChaScore: statOrDefault(p.Stats.Cha),

		PortraitStatus: PortraitPending,
	}
}
