package telegram

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"clipper/internal/conversation"
	"clipper/internal/messages"
	"clipper/internal/session"
)

// cancelData is the callback payload of the cancel button.
const cancelData = "x"

const qualitiesPerRow = 3

// keyboardFor returns the inline keyboard that goes with n, or nil.
func keyboardFor(n conversation.Notice, r *messages.Renderer) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	switch n.Signal {
	case conversation.SignalChooseQuality, conversation.SignalQualityNotOffered:
		if len(n.Qualities) == 0 {
			return nil
		}
		var row []tele.InlineButton
		for _, h := range n.Qualities {
			choice := conversation.Choice{Kind: conversation.ChoiceQuality, Generation: n.Generation, Value: strconv.Itoa(h)}
			row = append(row, tele.InlineButton{Text: r.QualityLabel(h), Data: choice.Encode()})
			if len(row) == qualitiesPerRow {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	case conversation.SignalChooseMode:
		var row []tele.InlineButton
		for _, mode := range []session.Mode{session.ModeVideo, session.ModeAudio} {
			choice := conversation.Choice{Kind: conversation.ChoiceMode, Generation: n.Generation, Value: string(mode)}
			row = append(row, tele.InlineButton{Text: r.ModeLabel(mode), Data: choice.Encode()})
		}
		rows = append(rows, row)
	case conversation.SignalRunStarted:
	default:
		return nil
	}
	rows = append(rows, []tele.InlineButton{{Text: r.CancelLabel(), Data: cancelData}})
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// inputFromText maps a chat message to a conversation input.
func inputFromText(chatID int64, text string) conversation.Input {
	trimmed := strings.TrimSpace(text)
	switch commandName(trimmed) {
	case "/start":
		return conversation.Input{ChatID: chatID, Kind: conversation.InputStart}
	case "/cancel", "/stop":
		return conversation.Input{ChatID: chatID, Kind: conversation.InputCancel}
	}
	return conversation.Input{ChatID: chatID, Kind: conversation.InputText, Text: trimmed}
}

// inputFromCallback maps button data to an input. Unknown payloads report false.
func inputFromCallback(chatID int64, data string) (conversation.Input, bool) {
	data = strings.TrimSpace(data)
	if data == cancelData {
		return conversation.Input{ChatID: chatID, Kind: conversation.InputCancel}, true
	}
	choice, ok := conversation.ParseChoice(data)
	if !ok {
		return conversation.Input{}, false
	}
	return conversation.Input{ChatID: chatID, Kind: conversation.InputChoice, Choice: choice}, true
}

// commandName returns "/cmd" for "/cmd@botname args", or "" for plain text.
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}
