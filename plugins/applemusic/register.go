package applemusic

import (
	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/config"
	platformplugins "github.com/muhammadzakizn/sonora/bot/platform/plugins"
)

func init() {
	if err := platformplugins.Register("applemusic", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(cfg *config.Config, logger bot.Logger) (*platformplugins.Contribution, error) {
	client := New(logger.With("provider", "applemusic"))
	return &platformplugins.Contribution{
		Provider: NewPlatform(client),
	}, nil
}
