package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

type balanceCmd struct{ productFlags }

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "muestra el saldo actual de un producto" }
func (*balanceCmd) Usage() string {
	return "ledgerctl balance -tenant <id> -product <id>\n"
}
func (c *balanceCmd) SetFlags(f *flag.FlagSet) { c.productFlags.register(f) }

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.validate(); err != nil {
		return fail(err)
	}
	env, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer env.Close()

	balance, err := env.svc.GetCurrentBalance(ctx, c.tenant, c.product)
	if err != nil {
		return fail(err)
	}
	fmt.Println(balance)
	return subcommands.ExitSuccess
}

type periodCmd struct {
	productFlags
	month string
}

func (*periodCmd) Name() string     { return "period" }
func (*periodCmd) Synopsis() string { return "muestra un periodo con sus movimientos" }
func (*periodCmd) Usage() string {
	return "ledgerctl period -tenant <id> -product <id> -month YYYY-MM\n"
}

func (c *periodCmd) SetFlags(f *flag.FlagSet) {
	c.productFlags.register(f)
	f.StringVar(&c.month, "month", "", "Periodo en formato YYYY-MM.")
}

func (c *periodCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.validate(); err != nil {
		return fail(err)
	}
	ym, err := time.Parse("2006-01", c.month)
	if err != nil {
		return fail(fmt.Errorf("-month: %w", err))
	}
	env, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer env.Close()

	p, err := env.svc.GetPeriod(ctx, c.tenant, c.product, ym.Year(), ym.Month())
	if err != nil {
		return fail(err)
	}
	printPeriod(p)
	return subcommands.ExitSuccess
}

func printPeriod(p *entity.StockPeriod) {
	fmt.Printf("%s  inicial %d  cierre %d\n", p.Key, p.OpeningBalance, p.ClosingBalance)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "FECHA\tTIPO\tENTRADA\tVENTA\tVENCIDO\tDAÑADO\tSALDO\tREFERENCIA\t")
	for _, m := range p.Movements {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t\n",
			m.Timestamp.Format(time.RFC3339), m.Kind(), m.Added, m.Used, m.Expired, m.Damaged, m.RunningBalance, m.SourceReference)
	}
	w.Flush()
	if p.ClampedEntries > 0 {
		fmt.Printf("%d movimiento(s) acotados a cero\n", p.ClampedEntries)
	}
}

type chainCmd struct{ productFlags }

func (*chainCmd) Name() string     { return "chain" }
func (*chainCmd) Synopsis() string { return "lista los periodos de un producto" }
func (*chainCmd) Usage() string {
	return "ledgerctl chain -tenant <id> -product <id>\n"
}
func (c *chainCmd) SetFlags(f *flag.FlagSet) { c.productFlags.register(f) }

func (c *chainCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.validate(); err != nil {
		return fail(err)
	}
	env, err := openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer env.Close()

	chain, err := env.svc.ListChain(ctx, c.tenant, c.product)
	if err != nil {
		return fail(err)
	}
	if len(chain) == 0 {
		fmt.Println("sin periodos")
		return subcommands.ExitSuccess
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "PERIODO\tINICIAL\tENTRADAS\tVENTAS\tVENCIDO\tDAÑADO\tCIERRE\tMOVS\t")
	var prevClosing int64
	for i, p := range chain {
		mark := ""
		if i > 0 && p.OpeningBalance != prevClosing {
			mark = " !"
		}
		fmt.Fprintf(w, "%s%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n", p.Key.Period, mark,
			p.OpeningBalance, p.TotalAdded, p.TotalUsed, p.TotalExpired, p.TotalDamaged, p.ClosingBalance, len(p.Movements))
		prevClosing = p.ClosingBalance
	}
	w.Flush()
	return subcommands.ExitSuccess
}
