package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
	"github.com/muhammadzakizn/sonora/bot/player"
	"github.com/muhammadzakizn/sonora/bot/queue"
)

const (
	queuePageSize    = 10
	playlistMaxItems = 100
)

// Handler routes prefix commands from guild text channels to the playback
// engine.
type Handler struct {
	prefix    string
	players   *player.Registry
	queues    *queue.Registry
	providers *platform.Manager
	history   bot.HistoryRepository
	emitter   *ProgressEmitter
	logger    bot.Logger

	searchLimit   int
	searchTimeout time.Duration
}

type HandlerOptions struct {
	Prefix        string
	SearchLimit   int
	SearchTimeout time.Duration
}

func NewHandler(players *player.Registry, queues *queue.Registry, providers *platform.Manager, history bot.HistoryRepository, emitter *ProgressEmitter, logger bot.Logger, opts HandlerOptions) *Handler {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 15 * time.Second
	}
	return &Handler{
		prefix:        opts.Prefix,
		players:       players,
		queues:        queues,
		providers:     providers,
		history:       history,
		emitter:       emitter,
		logger:        logger,
		searchLimit:   opts.SearchLimit,
		searchTimeout: opts.SearchTimeout,
	}
}

// OnMessageCreate is the discordgo MessageCreate handler.
func (h *Handler) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	name, args, ok := ParseCommand(h.prefix, m.Content)
	if !ok {
		return
	}

	reply := func(text string) {
		if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
			h.logger.Debug("reply failed", "channel_id", m.ChannelID, "error", err)
		}
	}

	switch name {
	case "play", "p":
		h.cmdPlay(s, m, args, reply)
	case "pause":
		h.cmdPause(m, reply)
	case "resume", "unpause":
		h.cmdResume(m, reply)
	case "skip", "next":
		h.cmdSkip(m, reply)
	case "stop":
		h.cmdStop(m, reply)
	case "queue", "q":
		h.cmdQueue(m, reply)
	case "nowplaying", "np":
		h.cmdNowPlaying(m, reply)
	case "shuffle":
		h.cmdShuffle(m, reply)
	case "clear":
		h.cmdClear(m, reply)
	case "remove", "rm":
		h.cmdRemove(m, args, reply)
	case "move", "mv":
		h.cmdMove(m, args, reply)
	case "volume", "vol":
		h.cmdVolume(m, args, reply)
	case "announce":
		h.cmdAnnounce(m, args, reply)
	case "history", "stats":
		h.cmdHistory(m, reply)
	case "help":
		reply(h.helpText())
	}
}

// ParseCommand splits a prefixed message into command name and argument
// string. Returns ok=false for non-command messages.
func ParseCommand(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(content, prefix))
	if rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (h *Handler) cmdPlay(s *discordgo.Session, m *discordgo.MessageCreate, args string, reply func(string)) {
	if args == "" {
		reply("Usage: " + h.prefix + "play <song or URL>")
		return
	}

	channelID := VoiceChannelOf(s, m.GuildID, m.Author.ID)
	if channelID == "" {
		reply("Join a voice channel first.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.searchTimeout)
	defer cancel()

	descriptors, err := h.resolveInput(ctx, args)
	if err != nil {
		h.logger.Warn("search failed", "guild_id", m.GuildID, "query", args, "error", err)
		reply("Nothing found for that.")
		return
	}

	h.emitter.BindChannel(m.GuildID, h.announceChannel(ctx, m))
	session := h.players.Get(m.GuildID)

	queued := 0
	var lastPos int
	for _, desc := range descriptors {
		desc.VoiceChannelID = channelID
		desc.RequestedBy = m.Author.ID
		pos, err := session.Enqueue(desc)
		if err != nil {
			h.logger.Warn("enqueue failed", "guild_id", m.GuildID, "track", desc.DisplayName(), "error", err)
			break
		}
		queued++
		lastPos = pos
	}

	switch {
	case queued == 0:
		reply("Could not queue anything.")
	case queued == 1:
		reply(fmt.Sprintf("Queued **%s** (position %d).", descriptors[0].DisplayName(), lastPos+1))
	default:
		reply(fmt.Sprintf("Queued **%d** tracks.", queued))
	}
}

// resolveInput turns user input into track descriptors: playlist and
// album URLs expand, track URLs resolve through the matching provider,
// and anything else is a search query against providers in priority
// order.
func (h *Handler) resolveInput(ctx context.Context, input string) ([]bot.TrackDescriptor, error) {
	if name, playlistID, ok := h.providers.MatchPlaylistURL(input); ok {
		expander := h.providers.Get(name).(platform.PlaylistExpander)
		return expander.ExpandPlaylist(ctx, playlistID, playlistMaxItems)
	}

	if name, albumID, ok := h.providers.MatchAlbumURL(input); ok {
		expander := h.providers.Get(name).(platform.AlbumExpander)
		return expander.ExpandAlbum(ctx, albumID, playlistMaxItems)
	}

	if name, _, ok := h.providers.MatchURL(input); ok {
		results, err := h.providers.Get(name).Search(ctx, input, 1)
		if err == nil && len(results) > 0 {
			return results[:1], nil
		}
	}

	var lastErr error
	for _, provider := range h.providers.Searchers() {
		results, err := provider.Search(ctx, input, h.searchLimit)
		if err != nil {
			lastErr = err
			continue
		}
		if len(results) > 0 {
			return results[:1], nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no results for %q", input)
	}
	return nil, lastErr
}

func (h *Handler) cmdPause(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("Nothing is playing.")
		return
	}
	if err := session.Pause(); err != nil {
		reply("Nothing is playing.")
		return
	}
	reply("Paused.")
}

func (h *Handler) cmdResume(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("Nothing is paused.")
		return
	}
	if err := session.Resume(); err != nil {
		reply("Nothing is paused.")
		return
	}
	reply("Resumed.")
}

func (h *Handler) cmdSkip(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("Nothing is playing.")
		return
	}
	if err := session.Skip(); err != nil {
		reply("Nothing is playing.")
		return
	}
	reply("Skipped.")
}

func (h *Handler) cmdStop(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("Nothing is playing.")
		return
	}
	session.Clear()
	session.Stop()
	h.players.Drop(m.GuildID)
	reply("Stopped and cleared the queue.")
}

func (h *Handler) cmdQueue(m *discordgo.MessageCreate, reply func(string)) {
	q := h.queues.Get(m.GuildID)
	entries := q.PeekAll()

	var b strings.Builder
	if session, ok := h.players.Peek(m.GuildID); ok {
		if now := session.NowPlaying(); now != nil {
			fmt.Fprintf(&b, "Now playing: **%s** `%s / %s`\n\n",
				now.Descriptor.DisplayName(),
				FormatDuration(session.Elapsed()),
				FormatDuration(now.Descriptor.Duration))
		}
	}

	if len(entries) == 0 {
		b.WriteString("The queue is empty.")
		reply(b.String())
		return
	}

	shown := len(entries)
	if shown > queuePageSize {
		shown = queuePageSize
	}
	for i := 0; i < shown; i++ {
		fmt.Fprintf(&b, "%d. %s `%s`\n", i+1, entries[i].Descriptor.DisplayName(), FormatDuration(entries[i].Descriptor.Duration))
	}
	if len(entries) > shown {
		fmt.Fprintf(&b, "…and %d more", len(entries)-shown)
	}
	reply(b.String())
}

func (h *Handler) cmdNowPlaying(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("Nothing is playing.")
		return
	}
	now := session.NowPlaying()
	if now == nil {
		reply("Nothing is playing.")
		return
	}
	reply(RenderUpdate(player.ProgressUpdate{
		GuildID:  m.GuildID,
		Track:    now.Descriptor,
		State:    session.State(),
		Elapsed:  session.Elapsed(),
		Duration: now.Descriptor.Duration,
	}))
}

func (h *Handler) cmdShuffle(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("Nothing to shuffle.")
		return
	}
	session.Shuffle()
	reply("Queue shuffled.")
}

func (h *Handler) cmdClear(m *discordgo.MessageCreate, reply func(string)) {
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("The queue is already empty.")
		return
	}
	count := session.Clear()
	reply(fmt.Sprintf("Removed %d tracks from the queue.", count))
}

func (h *Handler) cmdRemove(m *discordgo.MessageCreate, args string, reply func(string)) {
	pos, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || pos < 1 {
		reply("Usage: " + h.prefix + "remove <position>")
		return
	}
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("The queue is empty.")
		return
	}
	entry, err := session.Remove(pos - 1)
	if err != nil {
		reply("No track at that position.")
		return
	}
	reply(fmt.Sprintf("Removed **%s**.", entry.Descriptor.DisplayName()))
}

func (h *Handler) cmdMove(m *discordgo.MessageCreate, args string, reply func(string)) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		reply("Usage: " + h.prefix + "move <from> <to>")
		return
	}
	from, err1 := strconv.Atoi(fields[0])
	to, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || from < 1 || to < 1 {
		reply("Usage: " + h.prefix + "move <from> <to>")
		return
	}
	session, ok := h.players.Peek(m.GuildID)
	if !ok {
		reply("The queue is empty.")
		return
	}
	if err := session.Move(from-1, to-1); err != nil {
		reply("No track at that position.")
		return
	}
	reply(fmt.Sprintf("Moved track %d to position %d.", from, to))
}

func (h *Handler) cmdVolume(m *discordgo.MessageCreate, args string, reply func(string)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	args = strings.TrimSpace(args)
	if args == "" {
		settings, err := h.history.GetGuildSettings(ctx, m.GuildID)
		if err != nil {
			reply("Could not read the volume setting.")
			return
		}
		reply(fmt.Sprintf("Volume is %d%%.", settings.DefaultVolume))
		return
	}

	vol, err := strconv.Atoi(args)
	if err != nil || vol < 0 || vol > 200 {
		reply("Volume must be between 0 and 200.")
		return
	}

	settings, err := h.history.GetGuildSettings(ctx, m.GuildID)
	if err != nil {
		reply("Could not update the volume setting.")
		return
	}
	settings.DefaultVolume = vol
	if err := h.history.UpdateGuildSettings(ctx, settings); err != nil {
		reply("Could not update the volume setting.")
		return
	}
	reply(fmt.Sprintf("Volume set to %d%%. Takes effect on the next track.", vol))
}

// announceChannel is where progress messages go: the configured announce
// channel when one is set, otherwise the channel the command came from.
func (h *Handler) announceChannel(ctx context.Context, m *discordgo.MessageCreate) string {
	settings, err := h.history.GetGuildSettings(ctx, m.GuildID)
	if err == nil && settings != nil && settings.AnnounceChannel != "" {
		return settings.AnnounceChannel
	}
	return m.ChannelID
}

func (h *Handler) cmdAnnounce(m *discordgo.MessageCreate, args string, reply func(string)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	settings, err := h.history.GetGuildSettings(ctx, m.GuildID)
	if err != nil {
		reply("Could not read the announce setting.")
		return
	}

	switch strings.TrimSpace(args) {
	case "":
		settings.AnnounceChannel = m.ChannelID
		if err := h.history.UpdateGuildSettings(ctx, settings); err != nil {
			reply("Could not update the announce setting.")
			return
		}
		reply("Progress messages will be posted in this channel.")
	case "off":
		settings.AnnounceChannel = ""
		if err := h.history.UpdateGuildSettings(ctx, settings); err != nil {
			reply("Could not update the announce setting.")
			return
		}
		reply("Progress messages will follow the play command.")
	default:
		reply("Usage: " + h.prefix + "announce [off]")
	}
}

func (h *Handler) cmdHistory(m *discordgo.MessageCreate, reply func(string)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	total, err := h.history.CountPlays(ctx, m.GuildID)
	if err != nil {
		reply("Could not load history.")
		return
	}
	recent, err := h.history.RecentPlays(ctx, m.GuildID, 5)
	if err != nil {
		reply("Could not load history.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%d** tracks played in this server.\n", total)
	if top, counts, err := h.history.TopTracks(ctx, m.GuildID, 3); err == nil && len(top) > 0 {
		b.WriteString("Most played:\n")
		for i, r := range top {
			fmt.Fprintf(&b, "• %s — %s (%d plays)\n", r.Artist, r.Title, counts[i])
		}
	}
	if len(recent) > 0 {
		b.WriteString("Recent:\n")
		for _, r := range recent {
			fmt.Fprintf(&b, "• %s — %s (%s)\n", r.Artist, r.Title, r.Outcome)
		}
	}
	reply(b.String())
}

func (h *Handler) helpText() string {
	p := h.prefix
	return strings.Join([]string{
		"**Commands**",
		p + "play <song or URL> — queue a track or playlist",
		p + "pause / " + p + "resume — pause or resume playback",
		p + "skip — skip the current track",
		p + "stop — stop and clear the queue",
		p + "queue — show the queue",
		p + "nowplaying — show progress and lyrics",
		p + "shuffle / " + p + "clear / " + p + "remove <n> / " + p + "move <from> <to>",
		p + "volume [0-200] — show or set playback volume",
		p + "announce [off] — pin progress messages to this channel",
		p + "history — play statistics",
	}, "\n")
}
