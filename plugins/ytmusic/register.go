package ytmusic

import (
	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/config"
	platformplugins "github.com/muhammadzakizn/sonora/bot/platform/plugins"
)

func init() {
	if err := platformplugins.Register("ytmusic", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(cfg *config.Config, logger bot.Logger) (*platformplugins.Contribution, error) {
	client := New(logger.With("provider", "ytmusic"))
	return &platformplugins.Contribution{
		Provider: NewPlatform(client),
	}, nil
}
