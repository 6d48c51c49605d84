// ledgerctl herramienta de operación del libro mensual de stock: registrar e importar movimientos,
// consultar saldos y periodos, reparar cadenas y aplicar migraciones.
//
// Uso: ledgerctl <comando> [flags]. La configuración se lee igual que en cmd/api (env / .env).
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range []subcommands.Command{&recordCmd{}, &importCmd{}} {
		commander.Register(c, "movimientos")
	}
	for _, c := range []subcommands.Command{&balanceCmd{}, &periodCmd{}, &chainCmd{}} {
		commander.Register(c, "consultas")
	}
	for _, c := range []subcommands.Command{&repairCmd{}, &migrateCmd{}} {
		commander.Register(c, "mantenimiento")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
