package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/medreader/labreader-backend/internal/models"
)

// BotService runs one inbound update through dedup, session load, the
// state machine, the relay and outbound delivery
type BotService struct {
	sessions *SessionManager
	dedup    *Deduplicator
	relay    *RelayService
	telegram *TelegramService // nil when transport is not configured
}

// NewBotService wires the bot pipeline together
func NewBotService(sessions *SessionManager, dedup *Deduplicator, relay *RelayService, telegram *TelegramService) *BotService {
	return &BotService{
		sessions: sessions,
		dedup:    dedup,
		relay:    relay,
		telegram: telegram,
	}
}

// ProcessUpdate handles a single webhook delivery end to end
func (b *BotService) ProcessUpdate(ctx context.Context, update *models.Update) error {
	requestID := uuid.NewString()

	eventID := strconv.FormatInt(update.UpdateID, 10)
	if !b.dedup.ShouldProcess(eventID) {
		log.Printf("🔁 [%s] Duplicate update %s ignored", requestID, eventID)
		return nil
	}

	chatID, ok := updateChatID(update)
	if !ok {
		// unrecognized envelope shape
		log.Printf("⚠️  [%s] Update %s carries no chat - ignored", requestID, eventID)
		return nil
	}
	userID := strconv.FormatInt(chatID, 10)

	// last-resort boundary: a broken turn must never take the webhook
	// loop down with it
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [%s] Panic while handling update %s: %v", requestID, eventID, r)
			b.send(chatID, GenericErrorReply())
		}
	}()

	if update.CallbackQuery != nil && b.telegram != nil {
		b.telegram.AnswerCallbackQuery(update.CallbackQuery.ID)
	}

	ev, err := b.normalize(update)
	if err != nil {
		log.Printf("❌ [%s] Failed to normalize update %s: %v", requestID, eventID, err)
		b.send(chatID, GenericErrorReply())
		return nil
	}
	if ev.Kind == EventUnknown {
		return nil
	}

	session := b.sessions.Load(userID)
	result := Step(session, ev)

	b.persist(requestID, result)

	for _, reply := range result.Replies {
		b.send(chatID, reply)
	}

	if result.Relay != nil {
		b.runRelay(ctx, requestID, chatID, userID, result.Relay)
	}
	return nil
}

// persist writes the transition outcome to the session store; a
// degraded durable tier is logged, never surfaced as a failed turn
func (b *BotService) persist(requestID string, result StepResult) {
	var err error
	switch {
	case result.ResetSession:
		err = b.sessions.Reset(result.Session.UserID)
	case result.Fields != nil:
		err = b.sessions.Update(result.Session, result.Fields)
	default:
		return
	}
	if err != nil {
		if errors.Is(err, ErrStoreDegraded) {
			log.Printf("⚠️  [%s] Session for %s kept in volatile tier only: %v", requestID, result.Session.UserID, err)
			return
		}
		log.Printf("❌ [%s] Session persist failed for %s: %v", requestID, result.Session.UserID, err)
	}
}

// runRelay performs the analysis call and the post-relay state handling:
// success resets the dialog, failure leaves it untouched so the user
// can resend the document
func (b *BotService) runRelay(ctx context.Context, requestID string, chatID int64, userID string, order *RelayOrder) {
	b.send(chatID, ProcessingReply())
	if b.telegram != nil {
		b.telegram.SendChatAction(chatID, "typing")
	}

	result := b.relay.Relay(ctx, order.Task, order.Language, order.Document)

	switch result.Status {
	case RelaySuccess:
		b.send(chatID, Reply{Text: result.Analysis, Markdown: true, Voice: result.Voice})
		if err := b.sessions.Reset(userID); err != nil {
			log.Printf("⚠️  [%s] Post-relay reset degraded for %s: %v", requestID, userID, err)
		}
		b.send(chatID, MainMenuReply())
		log.Printf("✅ [%s] Document processed for %s (task=%s language=%s)", requestID, userID, order.Task, order.Language)

	case RelayRateLimited:
		b.send(chatID, RateLimitedReply())
		log.Printf("⏳ [%s] Relay rate limited for %s", requestID, userID)

	case RelayRemoteError:
		b.send(chatID, RemoteErrorReply(result.Detail))
		log.Printf("❌ [%s] Relay remote error for %s: %s", requestID, userID, result.Detail)

	case RelayTransportError:
		b.send(chatID, TransportErrorReply(result.Detail))
		log.Printf("❌ [%s] Relay transport error for %s: %s", requestID, userID, result.Detail)
	}
}

// send delivers one reply, or logs it when the transport is disabled
func (b *BotService) send(chatID int64, reply Reply) {
	if b.telegram == nil {
		log.Printf("📤 Response (not sent - Telegram not configured) to %d: %s", chatID, reply.Text)
		return
	}
	if err := b.telegram.SendReply(chatID, reply); err != nil {
		log.Printf("❌ Failed to send Telegram response to %d: %v", chatID, err)
	}
}

// normalize turns a raw Telegram update into a state machine event,
// resolving attachment file IDs to bytes when needed
func (b *BotService) normalize(update *models.Update) (Event, error) {
	if update.CallbackQuery != nil {
		return normalizeSelector(update.CallbackQuery.Data), nil
	}

	msg := update.Message
	if msg == nil {
		return Event{Kind: EventUnknown}, nil
	}

	if len(msg.Photo) > 0 || msg.Document != nil {
		return b.normalizeAttachment(msg)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Event{Kind: EventUnknown}, nil
	}

	if strings.HasPrefix(text, "/") {
		command := strings.ToLower(strings.Fields(text)[0])
		// strip a @botname suffix used in group chats
		if at := strings.Index(command, "@"); at > 0 {
			command = command[:at]
		}
		return Event{Kind: EventCommand, Command: command}, nil
	}

	// reply-keyboard selections arrive as plain text labels
	if task, ok := models.ParseTask(strings.ToLower(text)); ok {
		return Event{Kind: EventTaskSelected, Task: task}, nil
	}
	if language, ok := languageFromLabel(text); ok {
		return Event{Kind: EventLanguageSelected, Language: language}, nil
	}

	return Event{Kind: EventInvalidSelector}, nil
}

// languageFromLabel matches a reply-keyboard language label
func languageFromLabel(text string) (models.Language, bool) {
	switch models.Language(text) {
	case models.LanguageEnglish, models.LanguageFrench, models.LanguageArabic, models.LanguageSpanish:
		return models.Language(text), true
	}
	return "", false
}

// normalizeSelector maps an inline keyboard payload to an event
func normalizeSelector(data string) Event {
	switch {
	case data == SelectorMainMenu:
		return Event{Kind: EventBackToMenu}
	case strings.HasPrefix(data, SelectorTaskPrefix):
		if task, ok := models.ParseTask(strings.TrimPrefix(data, SelectorTaskPrefix)); ok {
			return Event{Kind: EventTaskSelected, Task: task}
		}
	case strings.HasPrefix(data, SelectorLangPrefix):
		if language, ok := models.ParseLanguage(strings.TrimPrefix(data, SelectorLangPrefix)); ok {
			return Event{Kind: EventLanguageSelected, Language: language}
		}
	}
	return Event{Kind: EventInvalidSelector}
}

// normalizeAttachment downloads the photo or document payload. Photos
// use the largest size Telegram offers.
func (b *BotService) normalizeAttachment(msg *models.Message) (Event, error) {
	var fileID, fileName, mimeType string

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		fileID = largest.FileID
		fileName = fmt.Sprintf("photo_%d.jpg", msg.Chat.ID)
		mimeType = "image/jpeg"
	case msg.Document != nil:
		fileID = msg.Document.FileID
		fileName = msg.Document.FileName
		mimeType = msg.Document.MimeType
		if fileName == "" {
			fileName = "document"
		}
	default:
		return Event{Kind: EventUnknown}, nil
	}

	if b.telegram == nil {
		return Event{}, fmt.Errorf("cannot download attachment: transport not configured")
	}
	data, err := b.telegram.GetFileBytes(fileID)
	if err != nil {
		return Event{}, fmt.Errorf("attachment download failed: %w", err)
	}

	return Event{
		Kind: EventDocument,
		Document: &models.PendingDocument{
			FileName: fileName,
			MimeType: mimeType,
			Data:     data,
		},
	}, nil
}

// updateChatID extracts the conversation key from either envelope shape
func updateChatID(update *models.Update) (int64, bool) {
	if update.Message != nil && update.Message.Chat != nil {
		return update.Message.Chat.ID, true
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil {
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}
