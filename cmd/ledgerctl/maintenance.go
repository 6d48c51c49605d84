package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
)

type repairCmd struct {
	productFlags
	dryRun bool
}

func (*repairCmd) Name() string     { return "repair" }
func (*repairCmd) Synopsis() string { return "audita y repara la cadena de periodos" }
func (*repairCmd) Usage() string {
	return `ledgerctl repair -tenant <id> -product <id> [-dry-run]

  Recalcula cada periodo desde el inicial del primero y reescribe solo los que
  cambian. Termina con código 1 si la auditoría encontró inconsistencias, aunque
  ya se hayan corregido (útil en tareas programadas).
`
}

func (c *repairCmd) SetFlags(f *flag.FlagSet) {
	c.productFlags.register(f)
	f.BoolVar(&c.dryRun, "dry-run", false, "Solo auditar, sin escribir.")
}

func (c *repairCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.validate(); err != nil {
		return fail(err)
	}
	env, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer env.Close()

	report, err := env.svc.RepairProduct(ctx, c.tenant, c.product, c.dryRun)
	if err != nil {
		return fail(err)
	}
	for _, inc := range report.Inconsistencies {
		fmt.Printf("%s  %-7s  %s\n", inc.Period, inc.Kind, inc.Detail)
	}
	fmt.Printf("examinados %d, corregidos %d (dry-run: %t)\n", report.PeriodsExamined, report.PeriodsCorrected, report.DryRun)
	if err := report.Err(); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string             { return "migrate" }
func (*migrateCmd) Synopsis() string         { return "aplica las migraciones de PostgreSQL" }
func (*migrateCmd) Usage() string            { return "ledgerctl migrate\n" }
func (*migrateCmd) SetFlags(_ *flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	env, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer env.Close()

	if env.infra.Pool == nil {
		return fail(fmt.Errorf("migrate requiere STORE_DRIVER=postgres"))
	}
	if err := postgres.RunMigrations(env.infra.Pool); err != nil {
		return fail(err)
	}
	fmt.Println("migraciones aplicadas")
	return subcommands.ExitSuccess
}
