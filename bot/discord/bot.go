// Package discord is the Discord surface: gateway session, prefix command
// routing, voice transport, and the edited-in-place now-playing message.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/muhammadzakizn/sonora/bot"
)

// Bot owns the gateway session and the message handlers.
type Bot struct {
	session *discordgo.Session
	handler *Handler
	logger  bot.Logger
}

// New creates the gateway session. Voice states must be intact in the
// state cache for channel affinity and the empty-channel policy, so the
// voice-state intent is not optional.
func New(token string, logger bot.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
	session.State.TrackVoice = true

	return &Bot{session: session, logger: logger}, nil
}

// Session exposes the underlying gateway session for wiring sinks and
// emitters.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// SetHandler registers the command router. Must be called before Start.
func (b *Bot) SetHandler(handler *Handler) {
	b.handler = handler
	b.session.AddHandler(handler.OnMessageCreate)
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	b.session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("gateway ready", "username", r.User.Username, "guilds", len(r.Guilds))
	})
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}
