package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medreader/labreader-backend/internal/models"
	"github.com/medreader/labreader-backend/internal/storage"
)

func newTestBot(store storage.Store) (*BotService, *SessionManager) {
	sessions := NewSessionManager(store)
	dedup := NewDeduplicator(10)
	relay := NewRelayService("http://analysis.invalid", 1*time.Second)
	// no transport configured: replies are logged, which the tests
	// don't assert on; state effects are what matters here
	return NewBotService(sessions, dedup, relay, nil), sessions
}

func textUpdate(updateID, chatID int64, text string) *models.Update {
	return &models.Update{
		UpdateID: updateID,
		Message: &models.Message{
			Chat: &models.Chat{ID: chatID},
			Text: text,
		},
	}
}

func TestProcessUpdateAdvancesDialog(t *testing.T) {
	store := storage.NewMemoryStore()
	bot, sessions := newTestBot(store)
	ctx := context.Background()

	require.NoError(t, bot.ProcessUpdate(ctx, textUpdate(1, 42, "analysis")))
	session := sessions.Load("42")
	assert.Equal(t, models.StageAwaitingLanguage, session.Stage)
	assert.Equal(t, models.TaskAnalysis, session.Task)

	require.NoError(t, bot.ProcessUpdate(ctx, textUpdate(2, 42, "French")))
	session = sessions.Load("42")
	assert.Equal(t, models.StageAwaitingDocument, session.Stage)
	assert.Equal(t, models.LanguageFrench, session.Language)
}

func TestProcessUpdateDuplicateIsNoOp(t *testing.T) {
	store := storage.NewMemoryStore()
	bot, sessions := newTestBot(store)
	ctx := context.Background()

	require.NoError(t, bot.ProcessUpdate(ctx, textUpdate(7, 42, "analysis")))
	session := sessions.Load("42")
	assert.Equal(t, models.StageAwaitingLanguage, session.Stage)

	// same update_id redelivered with a different body: swallowed
	require.NoError(t, bot.ProcessUpdate(ctx, textUpdate(7, 42, "English")))
	session = sessions.Load("42")
	assert.Equal(t, models.StageAwaitingLanguage, session.Stage)
	assert.Empty(t, session.Language)
}

func TestProcessUpdateUnknownEnvelopeIsNoOp(t *testing.T) {
	store := storage.NewMemoryStore()
	bot, _ := newTestBot(store)
	ctx := context.Background()

	// no message, no callback
	require.NoError(t, bot.ProcessUpdate(ctx, &models.Update{UpdateID: 9}))

	// message without chat
	require.NoError(t, bot.ProcessUpdate(ctx, &models.Update{
		UpdateID: 10,
		Message:  &models.Message{Text: "hello"},
	}))

	_, err := store.GetSession("42")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestProcessUpdateCallbackSelectors(t *testing.T) {
	store := storage.NewMemoryStore()
	bot, sessions := newTestBot(store)
	ctx := context.Background()

	callback := func(updateID int64, data string) *models.Update {
		return &models.Update{
			UpdateID: updateID,
			CallbackQuery: &models.CallbackQuery{
				ID:      "cb",
				Data:    data,
				Message: &models.Message{Chat: &models.Chat{ID: 42}},
			},
		}
	}

	require.NoError(t, bot.ProcessUpdate(ctx, callback(1, "task:prescription")))
	session := sessions.Load("42")
	assert.Equal(t, models.TaskPrescription, session.Task)

	require.NoError(t, bot.ProcessUpdate(ctx, callback(2, "lang:es")))
	session = sessions.Load("42")
	assert.Equal(t, models.LanguageSpanish, session.Language)
	assert.Equal(t, models.StageAwaitingDocument, session.Stage)

	// unknown selector code mutates nothing
	require.NoError(t, bot.ProcessUpdate(ctx, callback(3, "task:palmistry")))
	session = sessions.Load("42")
	assert.Equal(t, models.TaskPrescription, session.Task)
	assert.Equal(t, models.StageAwaitingDocument, session.Stage)

	// back to menu discards everything
	require.NoError(t, bot.ProcessUpdate(ctx, callback(4, SelectorMainMenu)))
	session = sessions.Load("42")
	assert.Equal(t, models.StageAwaitingTask, session.Stage)
	assert.Empty(t, session.Task)
}

func TestProcessUpdateStartCommand(t *testing.T) {
	store := storage.NewMemoryStore()
	bot, sessions := newTestBot(store)
	ctx := context.Background()

	require.NoError(t, bot.ProcessUpdate(ctx, textUpdate(1, 42, "medication")))
	require.NoError(t, bot.ProcessUpdate(ctx, textUpdate(2, 42, "/start")))

	session := sessions.Load("42")
	assert.Equal(t, models.StageAwaitingTask, session.Stage)
	assert.Empty(t, session.Task)
}

func documentReadySession(t *testing.T, sessions *SessionManager) {
	t.Helper()
	session := models.DefaultSession("42")
	session.Stage = models.StageAwaitingDocument
	session.Task = models.TaskAnalysis
	session.Language = models.LanguageEnglish
	require.NoError(t, sessions.Save(session))
}

func TestRelayFailureKeepsSessionForRetry(t *testing.T) {
	store := storage.NewMemoryStore()
	bot, sessions := newTestBot(store)
	documentReadySession(t, sessions)

	// nothing answers at the relay target, so this fails in transport
	bot.runRelay(context.Background(), "req-1", 42, "42", &RelayOrder{
		Task:     models.TaskAnalysis,
		Language: models.LanguageEnglish,
		Document: testDocument(),
	})

	// the collected triple survives, resending the document retries
	loaded := sessions.Load("42")
	assert.Equal(t, models.StageAwaitingDocument, loaded.Stage)
	assert.Equal(t, models.TaskAnalysis, loaded.Task)
	assert.Equal(t, models.LanguageEnglish, loaded.Language)
}

func TestRelaySuccessResetsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"analysis": "All markers within range."})
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	sessions := NewSessionManager(store)
	bot := NewBotService(sessions, NewDeduplicator(10), NewRelayService(server.URL, 5*time.Second), nil)
	documentReadySession(t, sessions)

	bot.runRelay(context.Background(), "req-1", 42, "42", &RelayOrder{
		Task:     models.TaskAnalysis,
		Language: models.LanguageEnglish,
		Document: testDocument(),
	})

	loaded := sessions.Load("42")
	assert.Equal(t, models.StageAwaitingTask, loaded.Stage)
	assert.Empty(t, loaded.Task)
	assert.Empty(t, loaded.Language)
}

func TestNormalizeSelectorVocabulary(t *testing.T) {
	cases := []struct {
		data string
		kind EventKind
	}{
		{"task:analysis", EventTaskSelected},
		{"task:radiography", EventTaskSelected},
		{"lang:en", EventLanguageSelected},
		{"lang:ar", EventLanguageSelected},
		{"menu:main", EventBackToMenu},
		{"task:unknown", EventInvalidSelector},
		{"lang:zz", EventInvalidSelector},
		{"garbage", EventInvalidSelector},
		{"", EventInvalidSelector},
	}
	for _, tc := range cases {
		ev := normalizeSelector(tc.data)
		assert.Equal(t, tc.kind, ev.Kind, "selector %q", tc.data)
	}
}
