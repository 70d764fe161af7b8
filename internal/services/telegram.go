package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/medreader/labreader-backend/internal/utils"
)

// MaxMessageLength is Telegram's hard per-message ceiling
const MaxMessageLength = 4096

// ChunkLength is where outbound text is split, safely under the ceiling
const ChunkLength = 4000

// TelegramService sends messages and fetches files through the Telegram
// Bot API over plain HTTP
type TelegramService struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewTelegramService creates a Telegram service from environment config
func NewTelegramService() (*TelegramService, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("missing TELEGRAM_BOT_TOKEN in environment variables")
	}

	baseURL := os.Getenv("TELEGRAM_API_URL")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramService{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}, nil
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type replyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

func (t *TelegramService) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

// call posts a JSON payload to a Bot API method and checks the ok flag
func (t *TelegramService) call(method string, payload map[string]interface{}) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Post(t.methodURL(method), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("telegram %s returned unreadable body: %w", method, err)
	}
	if !parsed.Ok {
		return &parsed, fmt.Errorf("telegram %s rejected: %s", method, parsed.Description)
	}
	return &parsed, nil
}

// SendReply delivers one Reply: chunked text (in order), keyboard on the
// final chunk, then the voice attachment if any. Markdown is attempted
// first and falls back to plain text when Telegram rejects it.
func (t *TelegramService) SendReply(chatID int64, reply Reply) error {
	chunks := utils.ChunkMessage(reply.Text, ChunkLength)

	for i, chunk := range chunks {
		payload := map[string]interface{}{
			"chat_id": chatID,
			"text":    chunk,
		}
		if i == len(chunks)-1 {
			if len(reply.Keyboard) > 0 {
				payload["reply_markup"] = buildInlineKeyboard(reply.Keyboard)
			} else if reply.RemoveKeyboard {
				payload["reply_markup"] = replyKeyboardRemove{RemoveKeyboard: true}
			}
		}

		if err := t.sendText(payload, chunk, reply.Markdown); err != nil {
			return err
		}
	}

	if len(reply.Voice) > 0 {
		if err := t.SendVoice(chatID, reply.Voice); err != nil {
			// the text already went out; audio is best effort
			log.Printf("⚠️  Failed to send voice message to %d: %v", chatID, err)
		}
	}
	return nil
}

// sendText attempts the rich render first, then the plain one
func (t *TelegramService) sendText(payload map[string]interface{}, raw string, markdown bool) error {
	if markdown {
		if sanitized, err := utils.SanitizeMarkdown(raw); err == nil {
			rich := clonePayload(payload)
			rich["text"] = sanitized
			rich["parse_mode"] = "Markdown"
			_, callErr := t.call("sendMessage", rich)
			if callErr == nil {
				return nil
			}
			log.Printf("⚠️  Markdown render rejected, falling back to plain text: %v", callErr)
		}
	}

	_, err := t.call("sendMessage", payload)
	return err
}

func clonePayload(payload map[string]interface{}) map[string]interface{} {
	clone := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		clone[k] = v
	}
	return clone
}

func buildInlineKeyboard(rows [][]Button) inlineKeyboardMarkup {
	markup := inlineKeyboardMarkup{}
	for _, row := range rows {
		var buttons []inlineKeyboardButton
		for _, b := range row {
			buttons = append(buttons, inlineKeyboardButton{Text: b.Label, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

// SendChatAction shows "typing…" style progress in the chat
func (t *TelegramService) SendChatAction(chatID int64, action string) {
	if _, err := t.call("sendChatAction", map[string]interface{}{
		"chat_id": chatID,
		"action":  action,
	}); err != nil {
		log.Printf("⚠️  sendChatAction failed for %d: %v", chatID, err)
	}
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing its progress spinner
func (t *TelegramService) AnswerCallbackQuery(callbackID string) {
	if _, err := t.call("answerCallbackQuery", map[string]interface{}{
		"callback_query_id": callbackID,
	}); err != nil {
		log.Printf("⚠️  answerCallbackQuery failed: %v", err)
	}
}

// SendVoice uploads a voice note as multipart form data
func (t *TelegramService) SendVoice(chatID int64, audio []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("voice", "analysis.ogg")
	if err != nil {
		return err
	}
	if _, err := part.Write(audio); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := t.client.Post(t.methodURL("sendVoice"), writer.FormDataContentType(), body)
	if err != nil {
		return fmt.Errorf("telegram sendVoice failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("telegram sendVoice returned unreadable body: %w", err)
	}
	if !parsed.Ok {
		return fmt.Errorf("telegram sendVoice rejected: %s", parsed.Description)
	}
	return nil
}

// GetFileBytes resolves a Telegram file ID and downloads its content
func (t *TelegramService) GetFileBytes(fileID string) ([]byte, error) {
	resp, err := t.call("getFile", map[string]interface{}{"file_id": fileID})
	if err != nil {
		return nil, err
	}

	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(resp.Result, &file); err != nil {
		return nil, fmt.Errorf("telegram getFile returned unreadable result: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile returned no file path")
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", t.baseURL, t.token, file.FilePath)
	download, err := t.client.Get(downloadURL)
	if err != nil {
		return nil, fmt.Errorf("telegram file download failed: %w", err)
	}
	defer download.Body.Close()

	if download.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download returned HTTP %d", download.StatusCode)
	}
	return io.ReadAll(download.Body)
}
