package main

import (
	"fmt"
	"io"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/dump"
	"github.com/nspcc-dev/token-ledger/token"
	"github.com/urfave/cli"
)

func inspectCommand() cli.Command {
	return cli.Command{
		Name:  "inspect",
		Usage: "Print ledger dump",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "dir, d",
				Usage: "Directory with dumps",
				Value: "testdata",
			},
			cli.StringFlag{
				Name:  "label, l",
				Usage: "Dump label",
			},
			cli.Uint64Flag{
				Name:  "seq, s",
				Usage: "Dump sequence number",
			},
			cli.StringSliceFlag{
				Name:  "account, a",
				Usage: "Account to print balance of (address or LE script hash)",
			},
		},
		Action: inspect,
	}
}

func inspect(c *cli.Context) error {
	if c.String("label") == "" {
		return cli.NewExitError("missing dump label", 1)
	}

	id := dump.ID{Label: c.String("label"), Seq: c.Uint64("seq")}

	r, err := dump.Open(c.String("dir"), id)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	e, err := dump.Restore(r, token.Prm{})
	if err != nil {
		return cli.NewExitError(fmt.Errorf("restore dump %s: %w", id, err), 1)
	}

	var accs []string
	for _, s := range c.StringSlice("account") {
		acc, err := account.Parse(s)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("account %q: %w", s, err), 1)
		}
		accs = append(accs, account.String(acc))
	}

	return printLedger(c.App.Writer, e, accs)
}

func printLedger(w io.Writer, e *token.Engine, accs []string) error {
	info := e.Info()

	amount := func(v *big.Int) string {
		return fmt.Sprintf("%s (%s)", fixedn.ToString(v, info.Decimals), v)
	}

	fmt.Fprintf(w, "Name:         %s\n", info.Name)
	fmt.Fprintf(w, "Symbol:       %s\n", info.Symbol)
	fmt.Fprintf(w, "Decimals:     %d\n", info.Decimals)
	fmt.Fprintf(w, "Total supply: %s\n", amount(info.TotalSupply))
	fmt.Fprintf(w, "Version:      %d\n", info.Version)
	fmt.Fprintf(w, "Protocol:     %s\n", info.Protocol)

	for _, s := range accs {
		acc, err := account.Parse(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", s, amount(e.BalanceOf(acc)))
	}

	return nil
}
