package chat_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/repository"
	"github.com/m-mizutani/kristal/pkg/usecase/chat"
)

func TestStoreMutations(t *testing.T) {
	ctx := context.Background()
	store := chat.New(repository.NewMemory())

	gt.NoError(t, store.SetClientID(ctx, "c-1"))
	gt.NoError(t, store.SetKristalID(ctx, "k-1"))
	gt.NoError(t, store.SetSessionID(ctx, "s-1"))

	now := time.Now()
	first := model.NewUserMessage("hello", now)
	gt.NoError(t, store.AddMessage(ctx, first))
	gt.NoError(t, store.AddMessage(ctx, first))

	st := store.State()
	gt.Equal(t, st.ClientID, "c-1")
	gt.Equal(t, st.KristalID, "k-1")
	gt.Equal(t, st.SessionID, model.SessionID("s-1"))
	// messages are appended as given, duplicates included
	gt.A(t, st.Messages).Length(2)
}

func TestStoreLoadingAndErrorAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := chat.New(repository.NewMemory())

	gt.NoError(t, store.SetError(ctx, "boom"))
	gt.NoError(t, store.SetLoading(ctx, true))
	st := store.State()
	gt.True(t, st.IsLoading)
	gt.Equal(t, st.Error, "boom")

	gt.NoError(t, store.SetLoading(ctx, false))
	gt.Equal(t, store.State().Error, "boom")

	gt.NoError(t, store.SetError(ctx, ""))
	gt.Equal(t, store.State().Error, "")
}

func TestStoreClearChat(t *testing.T) {
	ctx := context.Background()
	store := chat.New(repository.NewMemory())

	gt.NoError(t, store.SetClientID(ctx, "c-1"))
	gt.NoError(t, store.SetKristalID(ctx, "k-1"))
	gt.NoError(t, store.SetSessionID(ctx, "s-1"))
	gt.NoError(t, store.AddMessage(ctx, model.NewUserMessage("hi", time.Now())))

	gt.NoError(t, store.ClearChat(ctx))
	st := store.State()
	gt.A(t, st.Messages).Length(0)
	gt.Equal(t, st.SessionID, model.SessionID(""))
	gt.Equal(t, st.ClientID, "c-1")
	gt.Equal(t, st.KristalID, "k-1")
}

func TestStoreStateIsCopy(t *testing.T) {
	ctx := context.Background()
	store := chat.New(repository.NewMemory())

	msg := model.NewUserMessage("original", time.Now())
	gt.NoError(t, store.AddMessage(ctx, msg))

	st := store.State()
	st.Messages[0].Content = "changed"
	gt.Equal(t, store.State().Messages[0].Content, "original")
}

func TestStorePersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.New(repo)

	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
	reply := model.NewAssistantMessage(&model.ChatResponse{
		Response:   "**$1,000,000**",
		Sources:    []model.Source{{Type: model.SourceTypeURL, Name: "site", URL: "https://example.com"}},
		Validation: &model.ValidationResult{Status: model.ValidationFail, Summary: "off", Discrepancies: []string{"a"}, Agent: "v"},
		SessionID:  "s-1",
		Chart:      &model.ChartInfo{URL: "https://chart", Title: "Allocation"},
		Metadata:   &model.Metadata{AgentUsed: "portfolio", ResponseTime: 2.5},
	}, ts)

	gt.NoError(t, store.SetClientID(ctx, "c-1"))
	gt.NoError(t, store.SetSessionID(ctx, "s-1"))
	gt.NoError(t, store.AddMessage(ctx, model.NewUserMessage("worth?", ts)))
	gt.NoError(t, store.AddMessage(ctx, reply))
	gt.NoError(t, store.SetLoading(ctx, true))
	gt.NoError(t, store.SetError(ctx, "boom"))

	restored, err := chat.Load(ctx, repo)
	gt.NoError(t, err)
	st := restored.State()

	gt.Equal(t, st.ClientID, "c-1")
	gt.Equal(t, st.KristalID, "")
	gt.Equal(t, st.SessionID, model.SessionID("s-1"))
	// transient flags are not restored
	gt.False(t, st.IsLoading)
	gt.Equal(t, st.Error, "")

	gt.A(t, st.Messages).Length(2)
	got := st.Messages[1]
	gt.Equal(t, got.ID, reply.ID)
	gt.Equal(t, got.Content, reply.Content)
	gt.True(t, got.Timestamp.Equal(ts.Truncate(time.Millisecond)))
	gt.Equal(t, got.Sources[0].URL, "https://example.com")
	gt.Equal(t, got.Validation.Discrepancies[0], "a")
	gt.Equal(t, got.Chart.Title, "Allocation")
	gt.Equal(t, got.Metadata.AgentUsed, "portfolio")
}

func TestStoreProjectionFormat(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	store := chat.New(repo)

	ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	gt.NoError(t, store.SetClientID(ctx, "c-1"))
	gt.NoError(t, store.AddMessage(ctx, model.NewUserMessage("hi", ts)))

	raw, err := repo.Get(ctx, repository.NamespaceChat)
	gt.NoError(t, err)

	var p map[string]any
	gt.NoError(t, json.Unmarshal(raw, &p))
	gt.Equal(t, p["clientId"], any("c-1"))
	gt.Nil(t, p["kristalId"])
	gt.Nil(t, p["sessionId"])
	gt.S(t, string(raw)).Contains(`"timestamp":"2024-03-01T12:30:45.000Z"`)
	gt.S(t, string(raw)).NotContains("isLoading")
}

func TestLoadLenientHydration(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	t.Run("unparseable timestamp", func(t *testing.T) {
		repo := repository.NewMemory()
		gt.NoError(t, repo.Put(ctx, repository.NamespaceChat, []byte(`{
			"clientId": "c-1",
			"kristalId": null,
			"sessionId": "s-1",
			"messages": [
				{"id": "m1", "role": "user", "content": "a", "timestamp": "yesterday"},
				{"id": "m2", "role": "user", "content": "b", "timestamp": 12345},
				{"id": "m3", "role": "assistant", "content": "c", "timestamp": "2024-03-01T12:30:45.500Z"}
			]
		}`)))

		store, err := chat.LoadWithClock(ctx, repo, clock)
		gt.NoError(t, err)
		msgs := store.State().Messages
		gt.A(t, msgs).Length(3)
		gt.True(t, msgs[0].Timestamp.Equal(fixed))
		gt.True(t, msgs[1].Timestamp.Equal(fixed))
		gt.True(t, msgs[2].Timestamp.Equal(time.Date(2024, 3, 1, 12, 30, 45, 500000000, time.UTC)))
	})

	t.Run("unknown role", func(t *testing.T) {
		repo := repository.NewMemory()
		gt.NoError(t, repo.Put(ctx, repository.NamespaceChat, []byte(`{
			"clientId": "c-1",
			"messages": [
				{"id": "m1", "role": "system", "content": "a", "timestamp": "2024-03-01T12:30:45.000Z"},
				{"id": "m2", "role": "user", "content": "b", "timestamp": "2024-03-01T12:30:45.000Z"}
			]
		}`)))

		store, err := chat.LoadWithClock(ctx, repo, clock)
		gt.NoError(t, err)
		msgs := store.State().Messages
		gt.A(t, msgs).Length(1)
		gt.Equal(t, msgs[0].ID, model.MessageID("m2"))
	})

	t.Run("corrupted projection", func(t *testing.T) {
		repo := repository.NewMemory()
		gt.NoError(t, repo.Put(ctx, repository.NamespaceChat, []byte(`[broken`)))

		store, err := chat.LoadWithClock(ctx, repo, clock)
		gt.NoError(t, err)
		st := store.State()
		gt.Equal(t, st.ClientID, "")
		gt.A(t, st.Messages).Length(0)
	})

	t.Run("empty repository", func(t *testing.T) {
		store, err := chat.LoadWithClock(ctx, repository.NewMemory(), clock)
		gt.NoError(t, err)
		gt.A(t, store.State().Messages).Length(0)
	})
}
