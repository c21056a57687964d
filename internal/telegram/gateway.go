package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vipbot/internal/common"
	"vipbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Gateway adapts the Telegram Bot API to the messaging gateway contract: it sends
// texts and photos, downloads files and turns updates into events.
type Gateway struct {
	bot    *tgbotapi.BotAPI
	client *http.Client
}

// NewGateway authenticates the bot token against the API.
func NewGateway(token string) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("Authorized on Telegram")
	return &Gateway{
		bot:    bot,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func parseChatID(recipientID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid recipient id %q", common.ErrRecipient, recipientID)
	}
	return id, nil
}

func (g *Gateway) SendText(ctx context.Context, recipientID, text string, keyboard *models.Keyboard) error {
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if markup, ok := inlineKeyboard(keyboard); ok {
		msg.ReplyMarkup = markup
	}
	_, err = g.bot.Send(msg)
	return sendError(err)
}

func (g *Gateway) SendPhoto(ctx context.Context, recipientID, fileHandle, caption string) error {
	chatID, err := parseChatID(recipientID)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileHandle))
	photo.Caption = caption
	_, err = g.bot.Send(photo)
	return sendError(err)
}

// sendError marks rejections that concern a single chat (bad request, bot blocked)
// so they are not mistaken for a gateway outage.
func sendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", common.ErrRecipient, apiErr.Message)
	}
	return err
}

func inlineKeyboard(keyboard *models.Keyboard) (tgbotapi.InlineKeyboardMarkup, bool) {
	if keyboard == nil || len(keyboard.Rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard.Rows))
	for _, row := range keyboard.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.CallbackID))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// FetchFile downloads a file the bot received. The caller closes the body.
func (g *Gateway) FetchFile(ctx context.Context, fileHandle string) (io.ReadCloser, int64, error) {
	url, err := g.bot.GetFileDirectURL(fileHandle)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

// Ping checks the token is still accepted.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.bot.GetMe()
	return err
}

// Poll long-polls for updates and hands each one to handler until ctx is done.
func (g *Gateway) Poll(ctx context.Context, handler models.EventHandler) error {
	if _, err := g.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn().Err(err).Msg("Failed to clear webhook before polling")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := g.bot.GetUpdatesChan(u)
	log.Info().Msg("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			g.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			g.deliver(ctx, update, handler)
		}
	}
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (g *Gateway) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{}
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	if _, err := g.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Info().Str("url", url).Msg("Webhook registered")
	return nil
}

// ReceiveWebhook decodes one webhook request and hands the update to handler.
func (g *Gateway) ReceiveWebhook(ctx context.Context, r *http.Request, handler models.EventHandler) error {
	update, err := g.bot.HandleUpdate(r)
	if err != nil {
		return err
	}
	g.deliver(ctx, *update, handler)
	return nil
}

func (g *Gateway) deliver(ctx context.Context, update tgbotapi.Update, handler models.EventHandler) {
	event, ok := translateUpdate(update)
	if !ok {
		return
	}
	if press, isPress := event.(models.ButtonPressed); isPress {
		if _, err := g.bot.Request(tgbotapi.NewCallback(press.QueryID, "")); err != nil {
			log.Debug().Err(err).Msg("Failed to acknowledge button press")
		}
	}
	handler.Handle(ctx, event)
}
