package portrait

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/logger"
	"github.com/npcforge/npcforge/internal/npc"
)

type fakeImages struct {
	result *ai.ImageResult
	err    error
	calls  int
}

func (f *fakeImages) Generate(ctx context.Context, req ai.ImageRequest) (*ai.ImageResult, error) {
	_ = ctx
	_ = req
	f.calls++
	return f.result, f.err
}

type memBlob struct {
	objects map[string][]byte
}

func newMemBlob() *memBlob { return &memBlob{objects: map[string][]byte{}} }

func (m *memBlob) Put(_ context.Context, key string, data []byte) error {
	m.objects[key] = data
	return nil
}

func (m *memBlob) PublicURL(key string) string {
	return "http://cdn.test/" + key
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&npc.Npc{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedNpc(t *testing.T, repo *npc.Repo, id string) *npc.Npc {
	t.Helper()
	n := &npc.Npc{
		ID:          id,
		OwnerUserID: 1,
		Name:        "Garruk",
		Race:        "Dwarf",
		Class:       "Cleric",
		Level:       2,
		Gender:      "male",
		Age:         140,
		Alignment:   "Lawful Good",
		ShortPitch:  "A stubborn mountain priest.",

		StrScore: 14, DexScore: 10, ConScore: 15, IntScore: 10, WisScore: 16, ChaScore: 9,

		PortraitStatus: npc.PortraitPending,
	}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("seed npc: %v", err)
	}
	return n
}

func TestGenerate_AttachesPortrait(t *testing.T) {
	db := openTestDB(t)
	repo := npc.NewRepo(db)
	n := seedNpc(t, repo, "aaaaaaaa-0000-0000-0000-000000000001")

	png := []byte{0x89, 'P', 'N', 'G'}
	images := &fakeImages{result: &ai.ImageResult{B64: base64.StdEncoding.EncodeToString(png)}}
	blobs := newMemBlob()
	svc := NewService(repo, images, blobs, logger.NewNop())

	if ok := svc.Generate(context.Background(), n.ID); !ok {
		t.Fatalf("generate returned false")
	}

	key := Key(n.ID)
	if string(blobs.objects[key]) != string(png) {
		t.Fatalf("blob not written under %q", key)
	}

	got, err := repo.FindByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PortraitURL == nil || *got.PortraitURL != "http://cdn.test/"+key {
		t.Fatalf("portrait url = %v", got.PortraitURL)
	}
	if got.PortraitStatus != npc.PortraitReady {
		t.Fatalf("status = %q", got.PortraitStatus)
	}
}

func TestGenerate_SecondCallIsNoOp(t *testing.T) {
	db := openTestDB(t)
	repo := npc.NewRepo(db)
	n := seedNpc(t, repo, "aaaaaaaa-0000-0000-0000-000000000002")

	images := &fakeImages{result: &ai.ImageResult{B64: base64.StdEncoding.EncodeToString([]byte("img"))}}
	svc := NewService(repo, images, newMemBlob(), logger.NewNop())

	if ok := svc.Generate(context.Background(), n.ID); !ok {
		t.Fatalf("first generate failed")
	}
	first, _ := repo.FindByID(context.Background(), n.ID)

	// provider now fails hard; the no-op path must never reach it
	images.err = errors.New("provider down")
	images.result = nil
	if ok := svc.Generate(context.Background(), n.ID); !ok {
		t.Fatalf("second generate must report success")
	}
	if images.calls != 1 {
		t.Fatalf("image provider called %d times, want 1", images.calls)
	}

	second, _ := repo.FindByID(context.Background(), n.ID)
	if *second.PortraitURL != *first.PortraitURL {
		t.Fatalf("url changed on replay: %q -> %q", *first.PortraitURL, *second.PortraitURL)
	}
}

func TestGenerate_ExpectedFailures(t *testing.T) {
	db := openTestDB(t)
	repo := npc.NewRepo(db)
	svc := NewService(repo, &fakeImages{err: errors.New("boom")}, newMemBlob(), logger.NewNop())

	if ok := svc.Generate(context.Background(), "no-such-id"); ok {
		t.Fatalf("missing npc must return false")
	}

	n := seedNpc(t, repo, "aaaaaaaa-0000-0000-0000-000000000003")
	if ok := svc.Generate(context.Background(), n.ID); ok {
		t.Fatalf("provider error must return false")
	}

	bad := NewService(repo, &fakeImages{result: &ai.ImageResult{B64: "%%%not-base64%%%"}}, newMemBlob(), logger.NewNop())
	if ok := bad.Generate(context.Background(), n.ID); ok {
		t.Fatalf("b64 decode failure must return false")
	}

	got, _ := repo.FindByID(context.Background(), n.ID)
	if got.PortraitURL != nil || got.PortraitStatus != npc.PortraitPending {
		t.Fatalf("failed attempts must not mutate the record: %+v", got)
	}
}

func TestPromptFor(t *testing.T) {
	sub := "Hill"
	n := &npc.Npc{
		Name:       "Garruk",
		Race:       "Dwarf",
		Subrace:    &sub,
		Class:      "Cleric",
		Gender:     "male",
		Age:        140,
		Alignment:  "Lawful Good",
		ShortPitch: "A stubborn mountain priest.",
	}

	got := PromptFor(n)
	if !strings.HasPrefix(got, "Oil-painted Renaissance portrait") {
		t.Fatalf("missing style preamble: %q", got)
	}
	if !strings.Contains(got, "Dwarf Hill") {
		t.Fatalf("subrace not folded into race: %q", got)
	}
	if !strings.Contains(got, "140 years old") {
		t.Fatalf("age clause missing: %q", got)
	}

	// empty fields are skipped, not rendered as empty segments
	minimal := &npc.Npc{Name: "X", Race: "Human", Class: "Monk"}
	if strings.Contains(PromptFor(minimal), ", ,") {
		t.Fatalf("empty segments leaked: %q", PromptFor(minimal))
	}
}

func TestKey(t *testing.T) {
	if got := Key("abc"); got != "portraits/abc.png" {
		t.Fatalf("key = %q", got)
	}
}
