// Package app ties the compensation services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/plan"
	"github.com/podcastofficial/Usdt-miner/internal/app/locks"
	boostersvc "github.com/podcastofficial/Usdt-miner/internal/app/services/booster"
	compensationsvc "github.com/podcastofficial/Usdt-miner/internal/app/services/compensation"
	memberssvc "github.com/podcastofficial/Usdt-miner/internal/app/services/members"
	withdrawalssvc "github.com/podcastofficial/Usdt-miner/internal/app/services/withdrawals"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage/memory"
	"github.com/podcastofficial/Usdt-miner/internal/app/system"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Members      storage.MemberStore
	Transactions storage.TransactionLog
}

// Options tunes application construction.
type Options struct {
	Catalog          *plan.Catalog
	BotUsername      string
	AccrualSpec      string
	DisableScheduler bool
}

// Application holds the wired domain services and their lifecycle manager.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Members      *memberssvc.Service
	Compensation *compensationsvc.Service
	Boosters     *boostersvc.Service
	Withdrawals  *withdrawalssvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Members == nil {
		stores.Members = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}

	catalog := plan.DefaultCatalog()
	if opts.Catalog != nil {
		catalog = *opts.Catalog
	}

	// One lock table across all services: every read-modify-write on a member
	// record, whichever service performs it, serializes on the same lock.
	keyed := locks.New()

	memberService := memberssvc.New(stores.Members, keyed, log).WithBotUsername(opts.BotUsername)
	compService := compensationsvc.New(stores.Members, stores.Transactions, memberService, catalog, keyed, log)
	boosterService := boostersvc.New(stores.Members, keyed, log)
	withdrawalService := withdrawalssvc.New(stores.Members, stores.Transactions, keyed, log)

	manager := system.NewManager()
	for _, name := range []string{"members", "compensation", "booster", "withdrawals"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if !opts.DisableScheduler {
		scheduler := compensationsvc.NewScheduler(compService, log).WithSpec(opts.AccrualSpec)
		if err := manager.Register(scheduler); err != nil {
			return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Members:      memberService,
		Compensation: compService,
		Boosters:     boosterService,
		Withdrawals:  withdrawalService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
