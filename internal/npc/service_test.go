package npc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/npcforge/npcforge/internal/ai"
	"github.com/npcforge/npcforge/internal/logger"
)

type scriptedProvider struct {
	replies []string
	errs    []error
	calls   int
	reqs    []ai.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req ai.ChatRequest) (string, error) {
	_ = ctx
	i := p.calls
	p.calls++
	p.reqs = append(p.reqs, req)
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	var reply string
	if i < len(p.replies) {
		reply = p.replies[i]
	}
	return reply, err
}

type recordingDispatcher struct {
	ids []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, npcID string) {
	_ = ctx
	d.ids = append(d.ids, npcID)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Npc{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGenerate_PersistsValidPayload(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	prov := &scriptedProvider{replies: []string{validPayloadJSON}}
	disp := &recordingDispatcher{}
	svc := NewService(repo, prov, disp, logger.NewNop())

	res, err := svc.Generate(context.Background(), 7, "a bard hiding from her past")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if prov.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", prov.calls)
	}
	if res.Npc.ID == "" {
		t.Fatalf("expected generated id")
	}
	if res.Npc.OwnerUserID != 7 {
		t.Fatalf("owner = %d, want 7", res.Npc.OwnerUserID)
	}
	if res.Npc.Name != "Mirella Thorn" || res.Npc.Level != 3 {
		t.Fatalf("unexpected record: %+v", res.Npc)
	}
	if res.Npc.ChaScore != 17 || res.Npc.StrScore != 8 {
		t.Fatalf("stats not mapped: str=%d cha=%d", res.Npc.StrScore, res.Npc.ChaScore)
	}
	if res.Npc.PortraitStatus != PortraitPending {
		t.Fatalf("portrait status = %q, want pending", res.Npc.PortraitStatus)
	}
	if res.AppearanceDesc == "" {
		t.Fatalf("expected appearance_desc to be returned")
	}
	if len(disp.ids) != 1 || disp.ids[0] != res.Npc.ID {
		t.Fatalf("dispatcher calls = %v", disp.ids)
	}

	// appearance_desc is never persisted
	stored, err := repo.FindByID(context.Background(), res.Npc.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Name != "Mirella Thorn" {
		t.Fatalf("stored record mismatch: %+v", stored)
	}
}

func TestGenerate_ExhaustsAttemptBudget(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	prov := &scriptedProvider{
		replies: []string{"not json", `{"name":"x"}`, ""},
		errs:    []error{nil, nil, &ai.StatusError{StatusCode: 429, Body: "rate limited"}},
	}
	disp := &recordingDispatcher{}
	svc := NewService(repo, prov, disp, logger.NewNop())

	_, err := svc.Generate(context.Background(), 1, "anything")
	if err == nil {
		t.Fatalf("expected error")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T", err)
	}
	if genErr.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", genErr.Attempts)
	}
	if len(genErr.Diagnostics) != 3 {
		t.Fatalf("diagnostics = %d entries, want 3", len(genErr.Diagnostics))
	}
	if !strings.Contains(genErr.Diagnostics[2], "HTTP 429") {
		t.Fatalf("diagnostic missing status: %q", genErr.Diagnostics[2])
	}
	if prov.calls != 3 {
		t.Fatalf("provider calls = %d, want 3", prov.calls)
	}
	if len(disp.ids) != 0 {
		t.Fatalf("dispatcher must not run on failure")
	}

	var count int64
	db.Model(&Npc{}).Count(&count)
	if count != 0 {
		t.Fatalf("no record should persist, got %d", count)
	}
}

func TestGenerate_RecoversOnLaterAttempt(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	prov := &scriptedProvider{replies: []string{"garbage", validPayloadJSON}}
	svc := NewService(repo, prov, &recordingDispatcher{}, logger.NewNop())

	res, err := svc.Generate(context.Background(), 2, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if prov.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", prov.calls)
	}
	if res.Npc.Name != "Mirella Thorn" {
		t.Fatalf("unexpected record: %+v", res.Npc)
	}
}

func TestGenerate_ModeSelection(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	prov := &scriptedProvider{replies: []string{validPayloadJSON, validPayloadJSON}}
	svc := NewService(repo, prov, nil, logger.NewNop())

	if _, err := svc.Generate(context.Background(), 1, "   "); err != nil {
		t.Fatalf("random mode: %v", err)
	}
	if _, err := svc.Generate(context.Background(), 1, "a gruff blacksmith"); err != nil {
		t.Fatalf("prompted mode: %v", err)
	}

	random, prompted := prov.reqs[0], prov.reqs[1]
	if random.Temperature != 0.9 {
		t.Fatalf("random temperature = %v, want 0.9", random.Temperature)
	}
	if prompted.Temperature != 0.2 {
		t.Fatalf("prompted temperature = %v, want 0.2", prompted.Temperature)
	}
	if random.Messages[1].Content == "a gruff blacksmith" {
		t.Fatalf("random mode must not use caller text")
	}
	if prompted.Messages[1].Content != "a gruff blacksmith" {
		t.Fatalf("prompted mode user message = %q", prompted.Messages[1].Content)
	}
	for _, req := range prov.reqs {
		if req.Schema == nil || len(req.Schema.Schema) == 0 {
			t.Fatalf("schema missing from request")
		}
		if req.Messages[0].Role != ai.RoleSystem {
			t.Fatalf("first message role = %q", req.Messages[0].Role)
		}
	}
}

func TestRepo_AttachPortraitIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	n := &Npc{ID: "11111111-1111-1111-1111-111111111111", OwnerUserID: 1, Name: "Test", Race: "Human", Class: "Fighter", Level: 1, PortraitStatus: PortraitPending}
	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.AttachPortrait(ctx, n.ID, "http://x/portraits/a.png"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// second attach must not overwrite
	if err := repo.AttachPortrait(ctx, n.ID, "http://x/portraits/b.png"); err != nil {
		t.Fatalf("attach again: %v", err)
	}

	got, err := repo.FindByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.PortraitURL == nil || *got.PortraitURL != "http://x/portraits/a.png" {
		t.Fatalf("portrait url = %v", got.PortraitURL)
	}
	if got.PortraitStatus != PortraitReady {
		t.Fatalf("status = %q, want ready", got.PortraitStatus)
	}

	// a failure mark after success is ignored as well
	repo.MarkPortraitFailed(ctx, n.ID, "late failure")
	got, _ = repo.FindByID(ctx, n.ID)
	if got.PortraitStatus != PortraitReady || got.PortraitError != nil {
		t.Fatalf("failure overwrote ready record: %+v", got)
	}
}
