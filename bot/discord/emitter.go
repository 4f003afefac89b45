package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/player"
)

const progressBarWidth = 14

// ProgressEmitter renders the engine's progress updates into a per-guild
// now-playing message that gets edited in place. EmitProgress never
// blocks: each guild has a latest-wins slot and a worker goroutine that
// drains it, so a slow Discord edit drops intermediate frames instead of
// stalling the playback engine.
type ProgressEmitter struct {
	session *discordgo.Session
	limiter *RateLimiter
	logger  bot.Logger

	mu     sync.Mutex
	guilds map[string]*guildEmitter
}

type guildEmitter struct {
	updates   chan player.ProgressUpdate
	channelID string
	messageID string
	lastText  string
}

func NewProgressEmitter(session *discordgo.Session, limiter *RateLimiter, logger bot.Logger) *ProgressEmitter {
	return &ProgressEmitter{
		session: session,
		limiter: limiter,
		logger:  logger,
		guilds:  make(map[string]*guildEmitter),
	}
}

// BindChannel sets the text channel for a guild's now-playing message.
// Rebinding drops the old message reference so the next emission posts a
// fresh message in the new channel.
func (e *ProgressEmitter) BindChannel(guildID, channelID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := e.guild(guildID)
	if g.channelID != channelID {
		g.channelID = channelID
		g.messageID = ""
		g.lastText = ""
	}
}

// EmitProgress implements player.Emitter. Non-blocking by contract.
func (e *ProgressEmitter) EmitProgress(update player.ProgressUpdate) {
	e.mu.Lock()
	g := e.guild(update.GuildID)
	e.mu.Unlock()

	// Latest-wins: evict a stale queued update rather than block.
	for {
		select {
		case g.updates <- update:
			return
		default:
			select {
			case <-g.updates:
			default:
			}
		}
	}
}

// guild returns the per-guild state, starting its worker on first use.
// Caller holds e.mu.
func (e *ProgressEmitter) guild(guildID string) *guildEmitter {
	g, ok := e.guilds[guildID]
	if !ok {
		g = &guildEmitter{updates: make(chan player.ProgressUpdate, 1)}
		e.guilds[guildID] = g
		go e.drain(g)
	}
	return g
}

func (e *ProgressEmitter) drain(g *guildEmitter) {
	for update := range g.updates {
		e.publish(g, update)
	}
}

func (e *ProgressEmitter) publish(g *guildEmitter, update player.ProgressUpdate) {
	e.mu.Lock()
	channelID := g.channelID
	messageID := g.messageID
	lastText := g.lastText
	e.mu.Unlock()

	if channelID == "" {
		return
	}

	text := RenderUpdate(update)
	if text == lastText {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if messageID == "" {
		var msg *discordgo.Message
		err := WithRetry(ctx, e.limiter, channelID, func() error {
			var sendErr error
			msg, sendErr = e.session.ChannelMessageSend(channelID, text)
			return sendErr
		})
		if err != nil {
			e.logger.Debug("now-playing send failed", "guild_id", update.GuildID, "error", err)
			return
		}
		e.mu.Lock()
		g.messageID = msg.ID
		g.lastText = text
		e.mu.Unlock()
		return
	}

	err := WithRetry(ctx, e.limiter, channelID, func() error {
		_, editErr := e.session.ChannelMessageEdit(channelID, messageID, text)
		return editErr
	})
	if err != nil {
		e.logger.Debug("now-playing edit failed", "guild_id", update.GuildID, "error", err)
		// The message may have been deleted; repost next time.
		e.mu.Lock()
		g.messageID = ""
		e.mu.Unlock()
		return
	}
	e.mu.Lock()
	g.lastText = text
	e.mu.Unlock()
}

// RenderUpdate formats one progress emission as the now-playing message.
func RenderUpdate(update player.ProgressUpdate) string {
	var b strings.Builder

	b.WriteString(stateEmoji(update.State))
	b.WriteString(" **")
	b.WriteString(update.Track.DisplayName())
	b.WriteString("**\n")

	b.WriteString(RenderProgressBar(update.Elapsed, update.Duration, progressBarWidth))
	b.WriteString(" `")
	b.WriteString(FormatDuration(update.Elapsed))
	if update.Duration > 0 {
		b.WriteString(" / ")
		b.WriteString(FormatDuration(update.Duration))
	}
	b.WriteString("`")

	if lyrics := renderLyrics(update.Lyrics); lyrics != "" {
		b.WriteString("\n\n")
		b.WriteString(lyrics)
	}
	return b.String()
}

func renderLyrics(view *player.LyricsView) string {
	if view == nil {
		return ""
	}
	if view.Instrumental {
		return "*♪ instrumental ♪*"
	}

	var b strings.Builder
	if view.Prev != "" {
		b.WriteString("-# ")
		b.WriteString(view.Prev)
		b.WriteString("\n")
	}
	b.WriteString("**")
	b.WriteString(view.Current)
	b.WriteString("**")
	if view.Next != "" {
		b.WriteString("\n-# ")
		b.WriteString(view.Next)
	}
	return b.String()
}

func stateEmoji(state player.State) string {
	switch state {
	case player.StatePlaying:
		return "▶️"
	case player.StatePaused:
		return "⏸️"
	case player.StateLoading:
		return "⏳"
	default:
		return "⏹️"
	}
}

// RenderProgressBar draws an elapsed/total bar of the given width.
func RenderProgressBar(elapsed, total time.Duration, width int) string {
	if width <= 0 {
		width = progressBarWidth
	}
	pos := 0
	if total > 0 {
		pos = int(int64(width) * int64(elapsed) / int64(total))
		if pos >= width {
			pos = width - 1
		}
		if pos < 0 {
			pos = 0
		}
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i == pos {
			b.WriteString("🔘")
		} else {
			b.WriteString("▬")
		}
	}
	return b.String()
}

// FormatDuration renders m:ss, or h:mm:ss past the hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
