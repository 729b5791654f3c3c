package main

import (
	"fmt"
	"os"

	"github.com/nspcc-dev/token-ledger/common"
	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tokenledger"
	app.Usage = "Fungible token ledger service"
	app.Version = fmt.Sprintf("storage format %d", common.Version)
	app.Commands = []cli.Command{
		serveCommand(),
		inspectCommand(),
	}
	return app
}
