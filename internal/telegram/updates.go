package telegram

import (
	"strconv"
	"strings"
	"unicode"

	"vipbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// translateUpdate maps a Telegram update onto a gateway event. Updates the bot
// has no use for (edits, stickers, documents without a command) report false.
func translateUpdate(update tgbotapi.Update) (models.Event, bool) {
	if q := update.CallbackQuery; q != nil {
		return models.ButtonPressed{
			QueryID:    q.ID,
			CallbackID: q.Data,
			From:       buyerFrom(q.From, q.Message),
		}, true
	}

	msg := update.Message
	if msg == nil {
		return nil, false
	}
	from := buyerFrom(msg.From, msg)

	switch {
	case msg.IsCommand():
		payload := msg.CommandArguments()
		return models.CommandInvoked{
			Name:    strings.ToLower(msg.Command()),
			Args:    strings.Fields(payload),
			Payload: payload,
			From:    from,
		}, true
	case msg.Document != nil:
		name, payload, ok := captionCommand(msg.Caption)
		if !ok {
			return nil, false
		}
		return models.CommandInvoked{
			Name:       name,
			Args:       strings.Fields(payload),
			Payload:    payload,
			Attachment: msg.Document.FileID,
			From:       from,
		}, true
	case len(msg.Photo) > 0:
		// Sizes are listed smallest first.
		return models.PhotoReceived{
			FileHandle: msg.Photo[len(msg.Photo)-1].FileID,
			From:       from,
		}, true
	case msg.Text != "":
		return models.TextReceived{Text: msg.Text, From: from}, true
	}
	return nil, false
}

// captionCommand reads "/name@bot args" out of a document caption; Telegram does
// not mark caption commands the way it marks message commands.
func captionCommand(caption string) (name, payload string, ok bool) {
	caption = strings.TrimSpace(caption)
	if !strings.HasPrefix(caption, "/") {
		return "", "", false
	}
	head, rest := caption[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func buyerFrom(user *tgbotapi.User, msg *tgbotapi.Message) models.Buyer {
	if user == nil {
		if msg != nil && msg.Chat != nil {
			return models.Buyer{ID: strconv.FormatInt(msg.Chat.ID, 10)}
		}
		return models.Buyer{}
	}
	return models.Buyer{
		ID:          strconv.FormatInt(user.ID, 10),
		DisplayName: strings.TrimSpace(user.FirstName + " " + user.LastName),
		Username:    user.UserName,
	}
}
