package main

import (
	"fmt"

	"go.uber.org/zap"

	"zapfinder/internal/campaign"
	"zapfinder/internal/config"
	"zapfinder/internal/history"
	"zapfinder/internal/offer/mercadolivre"
	"zapfinder/internal/offer/shopee"
	"zapfinder/internal/whatsapp"
)

// buildSources assembles the enabled offer sources in config order: Shopee
// first, then Mercado Livre.
func buildSources(cfg *config.Config, log *zap.Logger) ([]campaign.OfferSource, error) {
	var sources []campaign.OfferSource

	if cfg.Shopee.Enabled {
		if cfg.Shopee.AppID == "" || cfg.Shopee.Secret == "" {
			return nil, fmt.Errorf("shopee: %w", shopee.ErrMissingCredentials)
		}
		sources = append(sources, shopee.New(cfg.Shopee.AppID, cfg.Shopee.Secret, log))
	}

	if cfg.MercadoLivre.Enabled {
		scraper := mercadolivre.New(cfg.MercadoLivre.Links, log)
		if err := scraper.Validate(); err != nil {
			return nil, fmt.Errorf("mercadolivre: %w", err)
		}
		sources = append(sources, scraper)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no offer sources enabled")
	}
	return sources, nil
}

// buildChannel constructs the WhatsApp channel from config.
func buildChannel(cfg *config.Config, log *zap.Logger) (*whatsapp.Channel, error) {
	if cfg.WhatsApp.Group == "" {
		return nil, fmt.Errorf("whatsapp.group is not configured")
	}
	sendDelay, err := cfg.SendDelay()
	if err != nil {
		return nil, err
	}
	return whatsapp.New(whatsapp.Config{
		UserDataDir: cfg.WhatsApp.SessionDir,
		Headless:    cfg.WhatsApp.Headless,
		SendDelay:   sendDelay,
	}, log), nil
}

// buildRunner wires sources, channel and history into a campaign runner. The
// caller owns closing the returned store.
func buildRunner(cfg *config.Config, log *zap.Logger) (*campaign.Runner, *history.Store, error) {
	sources, err := buildSources(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	channel, err := buildChannel(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	store, err := history.Open(cfg.History.DBPath, log)
	if err != nil {
		return nil, nil, err
	}
	readyTimeout, err := cfg.ReadyTimeout()
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	runner := campaign.NewRunner(campaign.Config{
		Sources:      sources,
		Channel:      channel,
		History:      store,
		Destination:  cfg.WhatsApp.Group,
		OfferLimit:   cfg.Campaign.OfferLimit,
		ReadyTimeout: readyTimeout,
		Logger:       log,
	})
	return runner, store, nil
}
