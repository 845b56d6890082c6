package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/gateway"
	"github.com/wordparty/catchphrase/internal/identity"
	"github.com/wordparty/catchphrase/internal/orchestrator"
	"github.com/wordparty/catchphrase/internal/store"
	"github.com/wordparty/catchphrase/internal/words"
)

// Services holds the wired application components.
type Services struct {
	Games       *orchestrator.Manager
	Connections *gateway.ConnectionManager
	Gateway     *gateway.Service
}

func setupServices(cfg *Config, st store.Store) (*Services, error) {
	vocab, err := setupVocabulary(cfg)
	if err != nil {
		return nil, err
	}

	conns := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), nil)
	broadcaster := gateway.NewBroadcaster(conns, st)
	games := orchestrator.NewManager(st, vocab, broadcaster, cfg.RoundSeconds)

	tokens := identity.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	svc := gateway.NewService(games, conns, tokens, tokens)

	return &Services{
		Games:       games,
		Connections: conns,
		Gateway:     svc,
	}, nil
}

func setupVocabulary(cfg *Config) (*words.Vocabulary, error) {
	if cfg.WordsFile != "" {
		vocab, err := words.Load(cfg.WordsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load word list %s: %w", cfg.WordsFile, err)
		}
		log.Info().Str("path", cfg.WordsFile).Int("words", vocab.Len()).Msg("loaded word list")
		return vocab, nil
	}

	vocab, err := words.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded word list: %w", err)
	}
	log.Info().Int("words", vocab.Len()).Msg("using embedded word list")
	return vocab, nil
}
