package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// GuildMembers answers the empty-channel policy question: how many humans
// are listening in a voice channel. Bots, including this one, never count.
type GuildMembers struct {
	session *discordgo.Session
	guildID string
}

func NewGuildMembers(session *discordgo.Session, guildID string) *GuildMembers {
	return &GuildMembers{session: session, guildID: guildID}
}

// ListHumanMembers counts non-bot members currently in the channel, using
// the gateway state cache.
func (g *GuildMembers) ListHumanMembers(channelID string) (int, error) {
	guild, err := g.session.State.Guild(g.guildID)
	if err != nil {
		return 0, fmt.Errorf("guild state %s: %w", g.guildID, err)
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		if isBot(g.session, g.guildID, vs.UserID) {
			continue
		}
		count++
	}
	return count, nil
}

func isBot(s *discordgo.Session, guildID, userID string) bool {
	if member, err := s.State.Member(guildID, userID); err == nil && member.User != nil {
		return member.User.Bot
	}
	if user, err := s.User(userID); err == nil {
		return user.Bot
	}
	// Unknown users count as humans so the bot never skips a track it
	// cannot prove is playing to an empty room.
	return false
}

// VoiceChannelOf returns the voice channel a user is currently in, or "".
func VoiceChannelOf(s *discordgo.Session, guildID, userID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}
