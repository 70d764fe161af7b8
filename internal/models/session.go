package models

import (
	"time"
)

// Stage marks where a user currently is in the multi-turn dialog
type Stage string

const (
	StageAwaitingTask     Stage = "awaiting_task"
	StageAwaitingLanguage Stage = "awaiting_language"
	StageAwaitingDocument Stage = "awaiting_document"
)

// Task is the kind of document processing the user asked for
type Task string

const (
	TaskAnalysis     Task = "analysis"
	TaskMedication   Task = "medication"
	TaskPrescription Task = "prescription"
	TaskRadiography  Task = "radiography"
)

// ParseTask maps a selector code to a Task
func ParseTask(code string) (Task, bool) {
	switch Task(code) {
	case TaskAnalysis, TaskMedication, TaskPrescription, TaskRadiography:
		return Task(code), true
	}
	return "", false
}

// Language is the output language for the analysis result
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageFrench  Language = "French"
	LanguageArabic  Language = "Arabic"
	LanguageSpanish Language = "Spanish"
)

// ParseLanguage maps a selector code (en/fr/ar/es) to a Language
func ParseLanguage(code string) (Language, bool) {
	switch code {
	case "en":
		return LanguageEnglish, true
	case "fr":
		return LanguageFrench, true
	case "ar":
		return LanguageArabic, true
	case "es":
		return LanguageSpanish, true
	}
	return "", false
}

// Session stores per-user conversation progress across instances
type Session struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	Stage     Stage     `json:"stage"`
	Task      Task      `json:"task,omitempty"`
	Language  Language  `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSession returns a fresh session at the start of the dialog
func DefaultSession(userID string) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		Stage:     StageAwaitingTask,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Valid checks the stage/field invariant: task is set from the language
// stage onward, language is set only at the document stage.
func (s *Session) Valid() bool {
	switch s.Stage {
	case StageAwaitingTask:
		return s.Task == "" && s.Language == ""
	case StageAwaitingLanguage:
		return s.Task != "" && s.Language == ""
	case StageAwaitingDocument:
		return s.Task != "" && s.Language != ""
	}
	return false
}

// Reset clears the session back to the start of the dialog
func (s *Session) Reset() {
	s.Stage = StageAwaitingTask
	s.Task = ""
	s.Language = ""
	s.UpdatedAt = time.Now()
}
