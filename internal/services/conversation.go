package services

import (
	"github.com/medreader/labreader-backend/internal/models"
)

// EventKind tags the normalized inbound event
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCommand
	EventTaskSelected
	EventLanguageSelected
	EventBackToMenu
	EventDocument
	EventInvalidSelector
)

// Commands the bot understands
const (
	CommandStart  = "/start"
	CommandMenu   = "/menu"
	CommandCancel = "/cancel"
)

// Event is one normalized transport event for a single user
type Event struct {
	Kind     EventKind
	Command  string
	Task     models.Task
	Language models.Language
	Document *models.PendingDocument
}

// RelayOrder instructs the caller to invoke the document relay
type RelayOrder struct {
	Task     models.Task
	Language models.Language
	Document *models.PendingDocument
}

// StepResult is the outcome of one state machine transition
type StepResult struct {
	// Session is the state after the event (before any relay runs)
	Session *models.Session
	// ResetSession asks the caller to reset the stored session
	ResetSession bool
	// Fields is a partial durable update to apply, nil when nothing changed
	Fields map[string]interface{}
	// Replies are outbound messages, delivered in order
	Replies []Reply
	// Relay, when set, asks the caller to run the document relay
	Relay *RelayOrder
}

// Step is the conversation state machine: deterministic, no I/O, no
// side effects beyond the returned instructions.
func Step(session *models.Session, ev Event) StepResult {
	result := StepResult{Session: session}

	switch ev.Kind {
	case EventCommand:
		switch ev.Command {
		case CommandStart, CommandMenu:
			session.Reset()
			result.ResetSession = true
			result.Replies = append(result.Replies, MainMenuReply())
		case CommandCancel:
			session.Reset()
			result.ResetSession = true
			result.Replies = append(result.Replies, CancelledReply())
		default:
			result.Replies = append(result.Replies, UnknownCommandReply())
		}

	case EventBackToMenu:
		session.Reset()
		result.ResetSession = true
		result.Replies = append(result.Replies, MainMenuReply())

	case EventTaskSelected:
		if session.Stage != models.StageAwaitingTask {
			result.Replies = append(result.Replies, InvalidSelectorReply())
			return result
		}
		session.Task = ev.Task
		session.Stage = models.StageAwaitingLanguage
		result.Fields = map[string]interface{}{
			"stage": models.StageAwaitingLanguage,
			"task":  ev.Task,
		}
		result.Replies = append(result.Replies, LanguageReply(ev.Task))

	case EventLanguageSelected:
		if session.Stage != models.StageAwaitingLanguage {
			result.Replies = append(result.Replies, InvalidSelectorReply())
			return result
		}
		session.Language = ev.Language
		session.Stage = models.StageAwaitingDocument
		result.Fields = map[string]interface{}{
			"stage":    models.StageAwaitingDocument,
			"language": ev.Language,
		}
		result.Replies = append(result.Replies, ReadyReply(ev.Language))

	case EventDocument:
		if ev.Document == nil || len(ev.Document.Data) == 0 {
			// neither photo nor file payload: ignore entirely
			return result
		}
		switch session.Stage {
		case models.StageAwaitingDocument:
			result.Relay = &RelayOrder{
				Task:     session.Task,
				Language: session.Language,
				Document: ev.Document,
			}
		case models.StageAwaitingLanguage:
			// document arrived out of order: reject, state unchanged
			result.Replies = append(result.Replies, PickLanguageReply())
		default:
			result.Replies = append(result.Replies, ChooseFirstReply())
		}

	case EventInvalidSelector:
		result.Replies = append(result.Replies, InvalidSelectorReply())

	case EventUnknown:
		// unrecognized envelope: no state change, no response
	}

	return result
}
