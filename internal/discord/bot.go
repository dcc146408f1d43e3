// Package discord provides the Discord layer for Lorevault. It owns the
// discordgo.Session lifecycle, posts identity-merge prompts to the lore
// channel, and routes human replies back to the reconciliation resolver.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord configuration.
type Config struct {
	// Token is the Discord bot token (e.g., "Bot MTIz...").
	Token string `yaml:"token"`

	// GuildID is the target guild (single-guild for alpha).
	GuildID string `yaml:"guild_id"`

	// LoreChannelID is the channel identity-merge prompts are posted to and
	// replies are read from.
	LoreChannelID string `yaml:"lore_channel_id"`
}

// ReplyHandler consumes a human reply to an earlier prompt message. The
// returned string, when non-empty, is posted back to the channel.
// Satisfied by the reconciliation resolver.
type ReplyHandler interface {
	HandleReply(ctx context.Context, promptMessageID, replyText string) (string, error)
}

// Bot owns the Discord gateway connection and routes reply messages to the
// handler.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	notifier  *Notifier
	handler   ReplyHandler
	channelID string
	log       *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Bot and connects to Discord. Replies are dropped until a
// handler is attached with [Bot.SetHandler]; the reconciliation resolver
// needs the bot's notifier first, so wiring happens in two steps.
func New(_ context.Context, cfg Config, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		session:   session,
		notifier:  NewNotifier(session),
		channelID: cfg.LoreChannelID,
		log:       log,
		done:      make(chan struct{}),
	}

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessage(s, m)
	})

	return b, nil
}

// Notifier returns the channel notifier backed by this session.
func (b *Bot) Notifier() *Notifier {
	return b.notifier
}

// SetHandler attaches the reply handler. Safe to call while the bot is
// receiving messages.
func (b *Bot) SetHandler(h ReplyHandler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// onMessage routes replies to earlier prompt messages into the handler.
// Everything else in the channel is ignored.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if m.ChannelID != b.channelID {
		return
	}
	if m.MessageReference == nil || m.MessageReference.MessageID == "" {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler == nil {
		return
	}

	ctx := context.Background()
	response, err := handler.HandleReply(ctx, m.MessageReference.MessageID, content)
	if err != nil {
		b.log.Error("handling merge reply failed",
			"message_id", m.ID, "referenced", m.MessageReference.MessageID, "error", err)
		response = "Something went wrong handling that reply; it is still pending."
	}
	if response == "" {
		return
	}
	if _, err := b.notifier.PostReply(ctx, m.ChannelID, response, m.ID); err != nil {
		b.log.Error("posting merge response failed", "message_id", m.ID, "error", err)
	}
}

// Run blocks until ctx is cancelled or the bot is closed.
func (b *Bot) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return nil
	}
}

// Close disconnects from Discord. Safe to call more than once.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		b.log.Info("discord bot closed")
	})
	return closeErr
}
