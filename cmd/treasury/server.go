package main

import (
	"fmt"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/hausgames/treasury/cmd/treasury/shared"
	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/backgammon"
	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/config"
	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/loyalty"
	"github.com/hausgames/treasury/internal/roulette"
	"github.com/hausgames/treasury/internal/server"
	"github.com/hausgames/treasury/internal/settle"
	"github.com/hausgames/treasury/internal/slots"
	"github.com/hausgames/treasury/internal/token"
)

// ServerCmd contains core server configuration
type ServerCmd struct {
	Config string `kong:"default='treasury.hcl',help='Path to the HCL configuration file'"`
	Addr   string `kong:"help='Override the configured listen address'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if c.Debug {
		level = "debug"
	}
	logger, closeLog, err := shared.SetupLogger(level, cfg.Server.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ceo := token.Address(cfg.Server.CEO)
	roles := access.NewRoles(ceo)
	if cfg.Server.Worker != cfg.Server.CEO {
		if err := roles.SetWorker(ceo, token.Address(cfg.Server.Worker)); err != nil {
			return err
		}
	}

	led := ledger.New(token.Address("treasury"), roles, logger)
	tokenIndexes := make(map[string]int, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		index, err := led.RegisterToken(ceo, token.NewLedger(), token.Address(t.Address), t.Name)
		if err != nil {
			return err
		}
		tokenIndexes[t.Name] = index
	}

	oracle := chain.NewOracle()
	clock := quartz.NewReal()

	var (
		rouletteEngine   *roulette.Engine
		slotsEngine      *slots.Engine
		backgammonEngine *backgammon.Engine
	)
	gameIDs := make(map[string]int, len(cfg.Games))
	for _, g := range cfg.Games {
		id, err := led.AddGame(ceo, g.Name)
		if err != nil {
			return err
		}
		gameIDs[g.Name] = id
		for _, index := range tokenIndexes {
			if err := led.SetMaximumBet(ceo, id, index, g.MaxBet); err != nil {
				return err
			}
		}

		switch g.Kind {
		case config.KindRoulette:
			if rouletteEngine != nil {
				return fmt.Errorf("game %s: roulette engine already configured", g.Name)
			}
			rouletteEngine = roulette.New(id, led, oracle, clock, logger, roulette.Config{
				MaxSquareBet:  g.MaxSquareBet,
				MaxBetCount:   g.MaxBetCount,
				RoundInterval: g.Interval(),
			})
		case config.KindSlots:
			if slotsEngine != nil {
				return fmt.Errorf("game %s: slots engine already configured", g.Name)
			}
			var factors [4]uint64
			copy(factors[:], g.Factors)
			slotsEngine = slots.New(id, led, oracle, logger, factors)
		case config.KindBackgammon:
			if backgammonEngine != nil {
				return fmt.Errorf("game %s: backgammon engine already configured", g.Name)
			}
			backgammonEngine = backgammon.New(id, led, logger, backgammon.Config{
				FeePercent: g.FeePercent,
			})
		}
	}
	if rouletteEngine == nil || slotsEngine == nil || backgammonEngine == nil {
		return fmt.Errorf("config must define one game of each kind")
	}

	tracker := loyalty.NewTracker(roles)
	if len(cfg.Loyalty) > 0 {
		if err := tracker.Enable(ceo, true, true); err != nil {
			return err
		}
		for _, l := range cfg.Loyalty {
			err := tracker.SetRatio(ceo, tokenIndexes[l.Token], gameIDs[l.Game], l.Ratio)
			if err != nil {
				return err
			}
		}
	}

	bus := settle.NewEventBus()
	stats := settle.NewStats()
	bus.Subscribe(stats)

	coordinator := settle.New(roles, led, oracle,
		rouletteEngine, slotsEngine, backgammonEngine,
		loyalty.NewNotifier(tracker, logger), bus, logger)

	var validator server.Validator
	if cfg.Server.WorkerToken != "" {
		validator = server.NewStaticValidator(map[string]token.Address{
			cfg.Server.WorkerToken: token.Address(cfg.Server.Worker),
		})
	} else {
		logger.Warn("No worker_token configured, accepting claimed addresses")
		validator = server.NewNoopValidator()
	}

	addr := cfg.ServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}
	srv := server.NewServer(addr, coordinator, validator, logger, server.WithStats(stats))

	logger.Info("Starting settlement server",
		"address", addr,
		"tokens", len(cfg.Tokens),
		"games", len(cfg.Games),
		"ceo", cfg.Server.CEO,
		"worker", cfg.Server.Worker)

	ctx := shared.SetupSignalHandler(logger)

	var group errgroup.Group
	group.Go(srv.Start)
	group.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})
	return group.Wait()
}
