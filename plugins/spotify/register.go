package spotify

import (
	"fmt"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/config"
	platformplugins "github.com/muhammadzakizn/sonora/bot/platform/plugins"
)

func init() {
	if err := platformplugins.Register("spotify", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(cfg *config.Config, logger bot.Logger) (*platformplugins.Contribution, error) {
	clientID := cfg.GetPluginString("spotify", "client_id")
	clientSecret := cfg.GetPluginString("spotify", "client_secret")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify requires client_id and client_secret")
	}

	client := New(clientID, clientSecret, logger.With("provider", "spotify"))
	return &platformplugins.Contribution{
		Provider: NewPlatform(client),
	}, nil
}
