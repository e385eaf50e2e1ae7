package tg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"autotrader/internal/core"
	"autotrader/internal/engine"
)

// Bot is the Telegram control surface. It only reads engine snapshots and
// funnels start/stop requests through the engine's own control lock; it
// never mutates trading state directly.
type Bot struct {
	token string
	eng   *engine.Engine
}

func NewBot(token string, eng *engine.Engine) *Bot {
	return &Bot{token: token, eng: eng}
}

var replyKeyboard = gobot.NewReplyKeyboard(
	gobot.NewKeyboardButtonRow(
		gobot.NewKeyboardButton("/start"),
		gobot.NewKeyboardButton("/stats"),
		gobot.NewKeyboardButton("/stop"),
	),
	gobot.NewKeyboardButtonRow(
		gobot.NewKeyboardButton("/balance"),
		gobot.NewKeyboardButton("/positions"),
		gobot.NewKeyboardButton("/status"),
	),
	gobot.NewKeyboardButtonRow(
		gobot.NewKeyboardButton("/runbot"),
		gobot.NewKeyboardButton("/stopbot"),
	),
)

func (b *Bot) Run(ctx context.Context) error {
	if b.token == "" {
		log.Warn().Msg("TG token empty: bot disabled")
		return nil
	}
	bot, err := gobot.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	bot.Debug = false
	log.Info().Str("@", bot.Self.UserName).Msg("Telegram connected")

	u := gobot.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case up := <-updates:
			if up.Message == nil {
				continue
			}
			b.handle(ctx, bot, up.Message.Chat.ID, strings.TrimSpace(up.Message.Text))
		}
	}
}

func (b *Bot) handle(ctx context.Context, bot *gobot.BotAPI, chatID int64, text string) {
	switch {
	case strings.HasPrefix(text, "/start"):
		msg := gobot.NewMessage(chatID, "Welcome To AutoTrader")
		msg.ReplyMarkup = replyKeyboard
		b.send(bot, msg)
	case strings.HasPrefix(text, "/runbot"):
		switch err := b.eng.Start(ctx); {
		case err == nil:
			b.reply(bot, chatID, "Trading bot started!")
		case errors.Is(err, core.ErrAlreadyRunning):
			b.reply(bot, chatID, "Trading bot is already running.")
		default:
			b.reply(bot, chatID, "Failed to start the trading bot.")
			log.Error().Err(err).Msg("runbot")
		}
	case strings.HasPrefix(text, "/stopbot"):
		switch err := b.eng.Stop(); {
		case err == nil:
			b.reply(bot, chatID, "Trading bot stopped!")
		case errors.Is(err, core.ErrNotRunning):
			b.reply(bot, chatID, "Trading bot is not running.")
		default:
			b.reply(bot, chatID, "Failed to stop the trading bot.")
			log.Error().Err(err).Msg("stopbot")
		}
	case strings.HasPrefix(text, "/status"):
		b.reply(bot, chatID, b.status())
	case strings.HasPrefix(text, "/balance"):
		balance, err := b.eng.Balance(ctx)
		if err != nil {
			b.reply(bot, chatID, "Unable to fetch balance.")
			log.Error().Err(err).Msg("balance query")
			return
		}
		b.reply(bot, chatID, fmt.Sprintf("Balance: %.4f", balance))
	case strings.HasPrefix(text, "/positions"):
		b.reply(bot, chatID, b.eng.PositionStatus())
	case strings.HasPrefix(text, "/stats"):
		stats, err := b.eng.Statistics(ctx)
		if err != nil {
			b.reply(bot, chatID, "An error occurred while fetching stats.")
			log.Error().Err(err).Msg("stats query")
			return
		}
		b.reply(bot, chatID, stats.String())
	case strings.HasPrefix(text, "/stop"):
		b.reply(bot, chatID, "Bot stopped!")
	default:
		b.reply(bot, chatID, "Unknown command. Try /status")
	}
}

func (b *Bot) status() string {
	if b.eng.Running() {
		return "Engine: running\n" + b.eng.PositionStatus()
	}
	return "Engine: stopped\n" + b.eng.PositionStatus()
}

func (b *Bot) reply(bot *gobot.BotAPI, chatID int64, text string) {
	b.send(bot, gobot.NewMessage(chatID, text))
}

func (b *Bot) send(bot *gobot.BotAPI, msg gobot.MessageConfig) {
	if _, err := bot.Send(msg); err != nil {
		log.Error().Err(err).Msg("send tg msg")
	}
}
