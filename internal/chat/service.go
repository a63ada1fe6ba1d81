package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/logger"
	"github.com/npcforge/npcforge/internal/npc"
)

// ErrEmptyMessage is returned before any side effect when the user text is
// blank.
var ErrEmptyMessage = errors.New("chat: message must not be empty")

// ErrNpcGone marks a chat whose NPC has been deleted. The chat stays
// readable; new turns are refused.
var ErrNpcGone = errors.New("chat: npc no longer exists")

const fallbackLine = "…the winds are fickle today. Try again."

const turnTemperature = 0.7

const systemMarkerContent = "system-initialized"

const roleplayRules = "You are an NPC in a D&D 5e style world. Stay in character. Be concise and vivid.\n" +
	"If asked out-of-character questions, answer briefly then return to roleplay.\n" +
	"Format short paragraphs. Avoid markdown tables."

type Service struct {
	repo     *Repo
	npcs     *npc.Repo
	provider ai.Provider
	window   int
	log      *logger.Logger
}

func NewService(repo *Repo, npcs *npc.Repo, provider ai.Provider, window int, log *logger.Logger) *Service {
	if window <= 0 || window > 100 {
		window = 12
	}
	return &Service{repo: repo, npcs: npcs, provider: provider, window: window, log: log}
}

// CreateChat verifies the NPC belongs to the owner, creates the chat and
// seeds it with the initial system marker message.
func (s *Service) CreateChat(ctx context.Context, ownerID uint64, npcID string, title *string) (*Chat, error) {
	if _, err := s.npcs.FindByIDForOwner(ctx, ownerID, npcID); err != nil {
		return nil, err
	}

	now := time.Now()
	c := &Chat{
		ID:            uuid.NewString(),
		OwnerUserID:   ownerID,
		NpcID:         npcID,
		Title:         title,
		LastMessageAt: &now,
	}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, err
	}

	marker := &Message{
		ID:      uuid.NewString(),
		ChatID:  c.ID,
		Role:    RoleSystem,
		Content: systemMarkerContent,
	}
	if err := s.repo.InsertMessage(ctx, marker); err != nil {
		return nil, err
	}
	return c, nil
}

// ChatView is a chat plus the summary of its NPC. Npc is nil when the NPC
// has been deleted; the chat is still listed.
type ChatView struct {
	Chat
	Npc *npc.Summary `json:"npc,omitempty"`
}

func (s *Service) ListChats(ctx context.Context, ownerID uint64) ([]ChatView, error) {
	chats, err := s.repo.ListChats(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.NpcID)
	}
	npcs, err := s.npcs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*npc.Summary, len(npcs))
	for i := range npcs {
		byID[npcs[i].ID] = npcs[i].Summary()
	}

	out := make([]ChatView, 0, len(chats))
	for _, c := range chats {
		out = append(out, ChatView{Chat: c, Npc: byID[c.NpcID]})
	}
	return out, nil
}

func (s *Service) GetChat(ctx context.Context, ownerID uint64, chatID string) (*ChatView, error) {
	c, err := s.repo.FindChat(ctx, ownerID, chatID)
	if err != nil {
		return nil, err
	}
	view := &ChatView{Chat: *c}
	if n, err := s.npcs.FindByID(ctx, c.NpcID); err == nil {
		view.Npc = n.Summary()
	}
	return view, nil
}

func (s *Service) UpdateTitle(ctx context.Context, ownerID uint64, chatID string, title *string) (*Chat, error) {
	if err := s.repo.UpdateChatTitle(ctx, ownerID, chatID, title); err != nil {
		return nil, err
	}
	return s.repo.FindChat(ctx, ownerID, chatID)
}

func (s *Service) DeleteChat(ctx context.Context, ownerID uint64, chatID string) error {
	return s.repo.DeleteChat(ctx, ownerID, chatID)
}

func (s *Service) ListMessages(ctx context.Context, ownerID uint64, chatID string) (*ChatView, []Message, error) {
	view, err := s.GetChat(ctx, ownerID, chatID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.repo.ListMessagesAsc(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	return view, msgs, nil
}

// TurnResult returns the two messages a completed turn appended.
type TurnResult struct {
	UserMessage *Message `json:"user"`
	NpcMessage  *Message `json:"npc"`
}

// SendTurn persists the user's utterance, replays the bounded history window
// through the completion provider with the NPC's persona prompt, and
// persists the reply. A provider failure is substituted with the fixed
// in-character fallback line, so the turn always completes; the user message
// is never rolled back.
func (s *Service) SendTurn(ctx context.Context, ownerID uint64, chatID, userText string) (*TurnResult, error) {
	c, err := s.repo.FindChat(ctx, ownerID, chatID)
	if err != nil {
		return nil, err
	}
	n, err := s.npcs.FindByID(ctx, c.NpcID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNpcGone
		}
		return nil, err
	}

	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyMessage
	}

	userMsg := &Message{
		ID:      uuid.NewString(),
		ChatID:  c.ID,
		Role:    RoleUser,
		Content: userText,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := s.historyWindow(ctx, c.ID, userMsg.ID)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPromptFor(n)})
	messages = append(messages, history...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: userText})

	reply, err := s.provider.Chat(ctx, ai.ChatRequest{
		Messages:    messages,
		Temperature: turnTemperature,
	})
	if err != nil {
		s.log.Warn("chat completion failed, using fallback", "chat_id", c.ID, "error", err)
		reply = fallbackLine
	}

	npcMsg := &Message{
		ID:      uuid.NewString(),
		ChatID:  c.ID,
		Role:    RoleNpc,
		Content: reply,
	}
	if err := s.repo.InsertMessage(ctx, npcMsg); err != nil {
		return nil, err
	}

	if err := s.repo.TouchLastMessage(ctx, c.ID, time.Now()); err != nil {
		return nil, err
	}

	return &TurnResult{UserMessage: userMsg, NpcMessage: npcMsg}, nil
}

// historyWindow loads the most recent messages (excluding the just-inserted
// user message), restores chronological order, drops system markers and maps
// the npc role to the provider's assistant role.
func (s *Service) historyWindow(ctx context.Context, chatID, excludeID string) ([]ai.Message, error) {
	recent, err := s.repo.ListRecentMessagesDesc(ctx, chatID, s.window, excludeID)
	if err != nil {
		return nil, err
	}

	out := make([]ai.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		switch m.Role {
		case RoleSystem:
			continue
		case RoleNpc:
			out = append(out, ai.Message{Role: ai.RoleAssistant, Content: m.Content})
		default:
			out = append(out, ai.Message{Role: ai.RoleUser, Content: m.Content})
		}
	}
	return out, nil
}

// systemPromptFor assembles the roleplay rules plus the NPC identity block,
// one attribute per line in stable order.
func systemPromptFor(n *npc.Npc) string {
	race := n.Race
	if n.Subrace != nil && *n.Subrace != "" {
		race = fmt.Sprintf("%s (%s)", n.Race, *n.Subrace)
	}

	lines := []string{
		roleplayRules,
		"Name: " + n.Name,
		"Race: " + race,
		fmt.Sprintf("Class: %s Level: %d", n.Class, n.Level),
		fmt.Sprintf("Gender: %s Age: %d", n.Gender, n.Age),
		"Alignment: " + n.Alignment,
		"Background: " + n.Background,
		"Personality: " + n.PersonalityType,
		"Pitch: " + n.ShortPitch,
		"Bio: " + n.Bio,
	}
	return strings.Join(lines, "\n")
}
