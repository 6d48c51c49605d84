package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/bootstrap"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// productFlags flags comunes a los comandos que operan sobre un producto.
type productFlags struct {
	tenant  string
	product string
}

func (p *productFlags) register(f *flag.FlagSet) {
	f.StringVar(&p.tenant, "tenant", "", "ID del tenant (teatro).")
	f.StringVar(&p.product, "product", "", "ID del producto.")
}

func (p *productFlags) validate() error {
	if p.tenant == "" || p.product == "" {
		return fmt.Errorf("-tenant y -product son obligatorios")
	}
	return nil
}

// ledgerEnv servicio listo para usar más los recursos a cerrar.
type ledgerEnv struct {
	cfg   *config.Config
	log   *logger.Logger
	infra *bootstrap.Infra
	svc   *inventory.LedgerService
}

func openLedger(ctx context.Context) (*ledgerEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	// Los logs van a stderr para no mezclarse con la salida del comando.
	log := logger.NewWriter(os.Stderr, cfg.App.LogLevel)
	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	ledgerCfg, err := bootstrap.LedgerConfig(cfg)
	if err != nil {
		infra.Close()
		return nil, err
	}
	svc := inventory.NewLedgerService(infra.Repo, infra.Locker, ledgerCfg, nil, log.Component("ledger"))
	return &ledgerEnv{cfg: cfg, log: log, infra: infra, svc: svc}, nil
}

func (e *ledgerEnv) Close() { e.infra.Close() }

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}
