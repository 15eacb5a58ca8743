package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"wishwatch-backend/lib/scrapers/psnstore"
	"wishwatch-backend/services/wishlist"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const greetingMessage = "Привет, я бот для твоего вишлиста в Sony PlayStation Network. " +
	"Ты можешь кидать мне ссылки на игры, которые ты хочешь когда-нибудь купить, " +
	"а я пришлю тебе сообщение, если на какие-то из них будут скидки."

const helpMessage = "Кидай мне ссылку на игру или её id, и я добавлю её в твой вишлист.\n" +
	"/list — показать вишлист\n" +
	"/del <номер> — убрать игру из вишлиста\n" +
	"/help — это сообщение"

type Bot struct {
	api     *tgbotapi.BotAPI
	service wishlist.Service

	notifiedMu sync.Mutex
	// "date:catalogId:chatId" keys of deals already announced, so an
	// hourly sweep doesn't repeat itself within the day
	notified map[string]bool
}

func NewBot(token string, service wishlist.Service) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Bot{
		api:      api,
		service:  service,
		notified: make(map[string]bool),
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "telegram bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) send(chatId int64, text string) {
	_, err := b.api.Send(tgbotapi.NewMessage(chatId, text))
	if err != nil {
		slog.Warn("failed to send telegram message", "chat_id", chatId, "err", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Text == "" {
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.send(message.Chat.ID, greetingMessage)
		case "help":
			b.send(message.Chat.ID, helpMessage)
		case "list":
			b.handleList(ctx, message)
		case "del":
			b.handleDelete(ctx, message)
		default:
			b.send(message.Chat.ID, "Не знаю такой команды. /help — подсказка.")
		}
		return
	}

	b.handleAdd(ctx, message)
}

func chatUserId(message *tgbotapi.Message) string {
	return strconv.FormatInt(message.Chat.ID, 10)
}

func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message) {
	entry, wasNew, err := b.service.AddWish(ctx, chatUserId(message), strings.TrimSpace(message.Text))
	if errors.Is(err, psnstore.ErrInvalidIdentifier) {
		b.send(message.Chat.ID, "Это не похоже на ссылку из магазина PlayStation. Пришли ссылку на страницу игры.")
		return
	}
	if errors.Is(err, wishlist.ErrUnknownIdentifier) {
		b.send(message.Chat.ID, "Не нашёл такую игру в магазине. Проверь ссылку.")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to add wish", "chat_id", message.Chat.ID, "err", err)
		b.send(message.Chat.ID, "Что-то пошло не так, попробуй ещё раз попозже.")
		return
	}

	if !wasNew {
		b.send(message.Chat.ID, fmt.Sprintf("«%s» уже есть в твоём вишлисте.", entry.Name))
		return
	}
	b.send(message.Chat.ID, fmt.Sprintf("Добавил «%s» в твой вишлист. Напишу, когда будет скидка.", entry.Name))
}

func (b *Bot) handleList(ctx context.Context, message *tgbotapi.Message) {
	entries, err := b.service.ListWishlist(ctx, chatUserId(message))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list wishlist", "chat_id", message.Chat.ID, "err", err)
		b.send(message.Chat.ID, "Что-то пошло не так, попробуй ещё раз попозже.")
		return
	}
	if len(entries) == 0 {
		b.send(message.Chat.ID, "Твой вишлист пока пуст. Пришли мне ссылку на игру.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Твой вишлист:\n")
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, entry.Name)
	}
	sb.WriteString("\n/del <номер> — убрать игру")
	b.send(message.Chat.ID, sb.String())
}

func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message) {
	arg := strings.TrimSpace(message.CommandArguments())
	if arg == "" {
		b.send(message.Chat.ID, "Напиши номер игры из /list, например: /del 1")
		return
	}

	userId := chatUserId(message)
	entries, err := b.service.ListWishlist(ctx, userId)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list wishlist", "chat_id", message.Chat.ID, "err", err)
		b.send(message.Chat.ID, "Что-то пошло не так, попробуй ещё раз попозже.")
		return
	}

	index, err := strconv.Atoi(arg)
	if err != nil || index < 1 || index > len(entries) {
		b.send(message.Chat.ID, "Нет игры с таким номером, посмотри /list.")
		return
	}
	entry := entries[index-1]

	_, err = b.service.RemoveWishEntry(ctx, userId, entry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove wish", "chat_id", message.Chat.ID, "err", err)
		b.send(message.Chat.ID, "Что-то пошло не так, попробуй ещё раз попозже.")
		return
	}
	b.send(message.Chat.ID, fmt.Sprintf("Убрал «%s» из твоего вишлиста.", entry.Name))
}

// NotifyDeals tells every wisher about today's discounts, once per
// title per day.
func (b *Bot) NotifyDeals(ctx context.Context, deals []wishlist.Deal) {
	for _, deal := range deals {
		if !deal.Snapshot.SalePrice.Valid {
			continue
		}
		text := fmt.Sprintf(
			"Скидка на «%s»: %s вместо %s (%s).",
			deal.Entry.Name,
			formatPrice(deal.Snapshot.SalePrice.Float64, deal.Snapshot.Currency),
			formatPrice(deal.Snapshot.OriginalPrice, deal.Snapshot.Currency),
			deal.Snapshot.Edition,
		)

		for _, wisher := range deal.Wishers {
			chatId, err := strconv.ParseInt(wisher, 10, 64)
			if err != nil {
				slog.WarnContext(ctx, "wisher id is not a telegram chat id", "user_id", wisher)
				continue
			}

			key := fmt.Sprintf("%s:%d:%d", deal.Snapshot.CheckDate, deal.Entry.ID, chatId)
			b.notifiedMu.Lock()
			seen := b.notified[key]
			if !seen {
				b.notified[key] = true
			}
			b.notifiedMu.Unlock()
			if seen {
				continue
			}

			b.send(chatId, text)
		}
	}
}

func formatPrice(value float64, currency string) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d %s", int64(value), currency)
	}
	return fmt.Sprintf("%.2f %s", value, currency)
}
