package models

// Telegram Bot API wire types for the webhook payload.
// Only the fields the bot actually reads are declared.

// Update is the envelope Telegram delivers to the webhook
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an incoming chat message
type Message struct {
	MessageID int64               `json:"message_id"`
	From      *User               `json:"from,omitempty"`
	Chat      *Chat               `json:"chat,omitempty"`
	Text      string              `json:"text,omitempty"`
	Photo     []PhotoSize         `json:"photo,omitempty"`
	Document  *DocumentAttachment `json:"document,omitempty"`
}

// User is the Telegram account that sent the message
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies the conversation
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// PhotoSize is one resolution of an uploaded photo; Telegram sends
// several, the last one is the largest
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// DocumentAttachment is a generic file upload (PDFs mostly)
type DocumentAttachment struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// CallbackQuery is a button press on an inline keyboard
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// PendingDocument carries raw document bytes for the duration of one
// relay call; it is never persisted
type PendingDocument struct {
	FileName string
	MimeType string
	Data     []byte
}
