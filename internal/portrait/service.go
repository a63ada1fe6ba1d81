package portrait

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/blob"
	"github.com/npcforge/npcforge/internal/logger"
	"github.com/npcforge/npcforge/internal/npc"
)

const stylePreamble = "Oil-painted Renaissance portrait, dark moody chiaroscuro, painterly brushwork, " +
	"dramatic shadows, 3/4 view, shoulders-up, soft rim light, neutral textured background, " +
	"high detail, no text. "

const portraitSize = "1024x1024"

// Service runs the portrait pipeline: look up the NPC, build a deterministic
// prompt, call the image provider, store the bytes, attach the public URL.
// Expected failure modes return false instead of an error; the idempotence
// check in Generate makes re-entry and concurrent attempts safe.
type Service struct {
	npcs   *npc.Repo
	images ai.ImageProvider
	blobs  blob.Store
	log    *logger.Logger
	client *http.Client
}

func NewService(npcs *npc.Repo, images ai.ImageProvider, blobs blob.Store, log *logger.Logger) *Service {
	return &Service{
		npcs:   npcs,
		images: images,
		blobs:  blobs,
		log:    log,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Key returns the deterministic blob key for an NPC's portrait. A retry
// after a partial failure overwrites the same object.
func Key(npcID string) string {
	return "portraits/" + npcID + ".png"
}

// PromptFor concatenates the non-empty identity fields behind the fixed
// painterly preamble.
func PromptFor(n *npc.Npc) string {
	race := n.Race
	if n.Subrace != nil && *n.Subrace != "" {
		race = strings.TrimSpace(n.Race + " " + *n.Subrace)
	}

	parts := make([]string, 0, 7)
	for _, p := range []string{
		n.Name,
		race,
		n.Class,
		n.Gender,
		ageClause(n.Age),
		n.Alignment,
		n.ShortPitch,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return stylePreamble + strings.Join(parts, ", ")
}

func ageClause(age int) string {
	if age <= 0 {
		return ""
	}
	return fmt.Sprintf("%d years old", age)
}

// Generate returns true when the NPC already has a portrait or one was newly
// generated and durably attached, false on any expected failure.
func (s *Service) Generate(ctx context.Context, npcID string) bool {
	n, err := s.npcs.FindByID(ctx, npcID)
	if err != nil {
		s.log.Warn("portrait generate: npc missing", "npc_id", npcID, "error", err)
		return false
	}
	if n.PortraitURL != nil && *n.PortraitURL != "" {
		s.log.Info("portrait already exists", "npc_id", npcID, "url", *n.PortraitURL)
		return true
	}

	prompt := PromptFor(n)
	s.log.Info("portrait generate start", "npc_id", npcID)

	res, err := s.images.Generate(ctx, ai.ImageRequest{Prompt: prompt, Size: portraitSize})
	if err != nil {
		s.log.Warn("portrait generate failed", "npc_id", npcID, "error", err)
		return false
	}

	var bin []byte
	switch {
	case res.B64 != "":
		bin, err = base64.StdEncoding.DecodeString(res.B64)
		if err != nil {
			s.log.Warn("portrait b64 decode failed", "npc_id", npcID, "error", err)
			return false
		}
	case res.URL != "":
		bin, err = s.download(ctx, res.URL)
		if err != nil {
			s.log.Warn("portrait download failed", "npc_id", npcID, "error", err)
			return false
		}
	default:
		s.log.Warn("portrait generate: unknown payload", "npc_id", npcID)
		return false
	}

	key := Key(n.ID)
	if err := s.blobs.Put(ctx, key, bin); err != nil {
		s.log.Error("portrait blob write failed", "npc_id", npcID, "error", err)
		return false
	}

	url := s.blobs.PublicURL(key)
	if err := s.npcs.AttachPortrait(ctx, n.ID, url); err != nil {
		s.log.Error("portrait attach failed", "npc_id", npcID, "error", err)
		return false
	}

	s.log.Info("portrait generate success", "npc_id", npcID, "url", url)
	return true
}

// MarkFailed records a terminal failure on the NPC record.
func (s *Service) MarkFailed(ctx context.Context, npcID, reason string) {
	if err := s.npcs.MarkPortraitFailed(ctx, npcID, reason); err != nil {
		s.log.Error("portrait mark failed errored", "npc_id", npcID, "error", err)
	}
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("portrait: download status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
