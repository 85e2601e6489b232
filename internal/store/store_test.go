package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"stemchat/internal/domain"
)

func testStore(t *testing.T) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st.Session()
}

func seedUser(t *testing.T, s *Session, username string) domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u := seedUser(t, s, "alice")

	m, err := s.CreateMessage(ctx, &u.ID, "hello", false)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("message id not assigned")
	}

	got, err := s.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got == nil || got.Content != "hello" || got.IsBot {
		t.Fatalf("unexpected message: %+v", got)
	}

	if err := s.UpdateMessageContent(ctx, m.ID, "edited"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetMessage(ctx, m.ID)
	if got.Content != "edited" {
		t.Fatalf("Content = %q after update", got.Content)
	}

	if err := s.DeleteMessage(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.GetMessage(ctx, m.ID)
	if err != nil || got != nil {
		t.Fatalf("deleted message still present: %+v, err=%v", got, err)
	}
}

func TestListMessagesAscendingWithUsernames(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u := seedUser(t, s, "alice")

	for _, content := range []string{"one", "two", "three"} {
		if _, err := s.CreateMessage(ctx, &u.ID, content, false); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.CreateMessage(ctx, nil, "bot says", true); err != nil {
		t.Fatalf("create bot: %v", err)
	}

	views, err := s.ListMessages(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("got %d messages, want 3", len(views))
	}
	// The oldest message falls outside the window; order is ascending.
	if views[0].Content != "two" || views[2].Content != "bot says" {
		t.Fatalf("unexpected window: %q..%q", views[0].Content, views[2].Content)
	}
	if views[0].Username != "alice" {
		t.Fatalf("Username = %q, want alice", views[0].Username)
	}
	if views[2].Username != "" {
		t.Fatalf("bot message username = %q, want empty", views[2].Username)
	}
}

func TestPairedBotMessage(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u := seedUser(t, s, "alice")

	user1, _ := s.CreateMessage(ctx, &u.ID, "# how many pencils", false)
	bot1, _ := s.CreateMessage(ctx, nil, "150 pencils", true)

	got, err := s.PairedBotMessage(ctx, user1.ID)
	if err != nil {
		t.Fatalf("paired: %v", err)
	}
	if got == nil || got.ID != bot1.ID {
		t.Fatalf("paired = %+v, want bot %d", got, bot1.ID)
	}
}

func TestPairedBotMessageInterleavedUserBreaksPair(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u := seedUser(t, s, "alice")
	v := seedUser(t, s, "bob")

	user1, _ := s.CreateMessage(ctx, &u.ID, "# stock of markers", false)
	s.CreateMessage(ctx, &v.ID, "unrelated chatter", false)
	s.CreateMessage(ctx, nil, "8 boxes of markers", true)

	got, err := s.PairedBotMessage(ctx, user1.ID)
	if err != nil {
		t.Fatalf("paired: %v", err)
	}
	if got != nil {
		t.Fatalf("interleaved user message should break the pair, got %+v", got)
	}
}

func TestPairedBotMessageNoReply(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u := seedUser(t, s, "alice")

	user1, _ := s.CreateMessage(ctx, &u.ID, "plain message", false)
	got, err := s.PairedBotMessage(ctx, user1.ID)
	if err != nil || got != nil {
		t.Fatalf("want no pair, got %+v, err=%v", got, err)
	}
}

func TestInventoryTransactionsAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	item, err := s.CreateItem(ctx, domain.InventoryItem{
		Name: "Beakers", Category: "Lab Equipment", Quantity: 25, Unit: "pieces", MinQuantity: 30,
	}, "initial", nil)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	newQty, err := s.AdjustQuantity(ctx, item.ID, 10, "add", "restock", nil)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if newQty != 35 {
		t.Fatalf("newQty = %v, want 35", newQty)
	}
	if _, err := s.AdjustQuantity(ctx, item.ID, -5, "remove", "used in class", nil); err != nil {
		t.Fatalf("adjust down: %v", err)
	}

	txs, err := s.ItemTransactions(ctx, item.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	wantAfter := []float64{25, 35, 30}
	for i, tx := range txs {
		if tx.QuantityAfter != wantAfter[i] {
			t.Fatalf("tx %d QuantityAfter = %v, want %v", i, tx.QuantityAfter, wantAfter[i])
		}
	}
	if txs[2].Type != "remove" || txs[2].QuantityChange != -5 {
		t.Fatalf("unexpected final transaction: %+v", txs[2])
	}
}

func TestSearchItemsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if _, err := s.CreateItem(ctx, domain.InventoryItem{
		Name: "Safety Goggles", Category: "Lab Equipment", Quantity: 35, Unit: "pairs", MinQuantity: 40,
	}, "seed", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := s.SearchItems(ctx, "goggles")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Safety Goggles" {
		t.Fatalf("unexpected search result: %+v", items)
	}

	low, err := s.LowStockItems(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 {
		t.Fatalf("goggles at 35/min 40 should be low, got %d items", len(low))
	}
}

func TestLessonChunksRoundTripEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	doc := domain.LessonDocument{ID: "abc123", Filename: "Grade7_Biology.md", Subject: "Biology", Grade: 7}
	chunks := []domain.LessonChunk{
		{ID: "abc123-0", DocumentID: doc.ID, Content: "photosynthesis basics", ChunkIndex: 0, Embedding: []float32{0.5, -1.25, 3}},
		{ID: "abc123-1", DocumentID: doc.ID, Content: "light and dark reactions", ChunkIndex: 1, Embedding: []float32{1, 2, 3}},
	}
	if err := s.AddLessonDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("add document: %v", err)
	}

	records, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("all chunks: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d chunks, want 2", len(records))
	}
	got := records[0].Embedding
	want := []float32{0.5, -1.25, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("embedding[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if records[0].Metadata.Filename != "Grade7_Biology.md" || records[0].Metadata.Grade != 7 {
		t.Fatalf("metadata not joined: %+v", records[0].Metadata)
	}

	// Re-adding replaces the chunks instead of accumulating.
	if err := s.AddLessonDocument(ctx, doc, chunks[:1]); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	records, _ = s.AllChunks(ctx)
	if len(records) != 1 {
		t.Fatalf("got %d chunks after replace, want 1", len(records))
	}

	n, err := s.CountLessonDocuments(ctx)
	if err != nil || n != 1 {
		t.Fatalf("document count = %d, err=%v, want 1", n, err)
	}
}
