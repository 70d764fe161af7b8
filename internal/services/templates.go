package services

import (
	"fmt"

	"github.com/medreader/labreader-backend/internal/models"
)

// Button is one selectable option on an inline keyboard
type Button struct {
	Label string
	Data  string
}

// Reply is an outbound message instruction for the transport
type Reply struct {
	Text           string
	Keyboard       [][]Button
	RemoveKeyboard bool
	Markdown       bool
	Voice          []byte
}

// Selector payload vocabulary for inline keyboard buttons
const (
	SelectorTaskPrefix = "task:"
	SelectorLangPrefix = "lang:"
	SelectorMainMenu   = "menu:main"
)

// MainMenuReply greets the user and offers the task options
func MainMenuReply() Reply {
	return Reply{
		Text: "Welcome to Lab Reader Bot! 🩺\n\n" +
			"I can help you understand your medical reports or prescriptions.\n\n" +
			"What would you like to process?",
		Keyboard: [][]Button{
			{
				{Label: "Analysis", Data: SelectorTaskPrefix + string(models.TaskAnalysis)},
				{Label: "Medication", Data: SelectorTaskPrefix + string(models.TaskMedication)},
			},
			{
				{Label: "Prescription", Data: SelectorTaskPrefix + string(models.TaskPrescription)},
				{Label: "Radiography", Data: SelectorTaskPrefix + string(models.TaskRadiography)},
			},
		},
	}
}

// LanguageReply confirms the chosen task and offers the languages
func LanguageReply(task models.Task) Reply {
	return Reply{
		Text: fmt.Sprintf("Understood! We'll process your %s.\n\n"+
			"In which language would you like to receive the results?", task),
		Keyboard: [][]Button{
			{
				{Label: "English", Data: SelectorLangPrefix + "en"},
				{Label: "French", Data: SelectorLangPrefix + "fr"},
			},
			{
				{Label: "Arabic", Data: SelectorLangPrefix + "ar"},
				{Label: "Spanish", Data: SelectorLangPrefix + "es"},
			},
			{
				{Label: "⬅️ Back to menu", Data: SelectorMainMenu},
			},
		},
	}
}

// ReadyReply asks the user to send the document
func ReadyReply(language models.Language) Reply {
	return Reply{
		Text: fmt.Sprintf("Perfect. You'll receive the report in %s.\n\n"+
			"Now, please upload your image or PDF document.", language),
		RemoveKeyboard: true,
	}
}

// ProcessingReply is the interim message before the relay call
func ProcessingReply() Reply {
	return Reply{Text: "Processing your document... please wait. ⏳"}
}

// CancelledReply confirms /cancel
func CancelledReply() Reply {
	return Reply{
		Text:           "Process cancelled. Use /start whenever you're ready.",
		RemoveKeyboard: true,
	}
}

// ChooseFirstReply rejects a document that arrived before the task and
// language were chosen
func ChooseFirstReply() Reply {
	reply := MainMenuReply()
	reply.Text = "Please choose what to process before sending a document.\n\n" +
		"What would you like to process?"
	return reply
}

// PickLanguageReply rejects a document sent while a language choice is pending
func PickLanguageReply() Reply {
	return Reply{Text: "Almost there! Please pick a result language first."}
}

// InvalidSelectorReply answers a selector outside the known vocabulary
func InvalidSelectorReply() Reply {
	return Reply{Text: "Sorry, I didn't understand that choice. Use /menu to start over."}
}

// UnknownCommandReply answers a command the bot doesn't know
func UnknownCommandReply() Reply {
	return Reply{Text: "I don't know that command. Use /start to begin or /cancel to stop."}
}

// RateLimitedReply answers a quota rejection from the analysis service
func RateLimitedReply() Reply {
	return Reply{Text: "⏳ The analysis service is busy right now. Please try again in about 60 seconds."}
}

// RemoteErrorReply answers a non-success response from the analysis service
func RemoteErrorReply(detail string) Reply {
	return Reply{Text: fmt.Sprintf("❌ Error from the analysis service: %s\n\nYou can resend the document to retry.", detail)}
}

// TransportErrorReply answers a network failure toward the analysis service
func TransportErrorReply(detail string) Reply {
	return Reply{Text: fmt.Sprintf("❌ Could not reach the analysis service: %s\n\nYou can resend the document to retry.", detail)}
}

// GenericErrorReply is the outermost fallback for unexpected failures
func GenericErrorReply() Reply {
	return Reply{Text: "❌ Sorry, something went wrong. Please try again."}
}
