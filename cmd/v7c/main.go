// Command v7c is the embeddable engine's standalone driver: it runs a
// script file, evaluates an inline expression, or drops into an
// interactive REPL, using the same engine package a host would embed.
//
// Usage:
//
//	v7c [flags] <script.js>
//	v7c -e '1+2'
//	v7c            # REPL
package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/eddid/v7go/engine"
)

func main() {
	app := cli.NewApp()
	app.Name = "v7c"
	app.Usage = "run or explore scripts against the embeddable JS engine"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "e",
			Usage: "evaluate `EXPR` instead of reading a file",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "treat input as JSON rather than a script (parse_json)",
		},
		cli.IntFlag{
			Name:  "cache-bytes",
			Usage: "compiled-script cache size in bytes",
			Value: 4 << 20,
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "v7c:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	e := engine.New(engine.Options{CacheBytes: c.Int("cache-bytes")})
	defer e.Destroy()

	if expr := c.String("e"); expr != "" {
		return evalAndPrint(e, expr, c.Bool("json"))
	}

	if c.NArg() == 0 {
		return runREPL(e)
	}

	path := c.Args().Get(0)
	res, err := e.ExecFile(path)
	if err != nil {
		return reportException(e, err)
	}
	fmt.Println(e.ToJSONOrDebug(res, true))
	return nil
}

func evalAndPrint(e *engine.Engine, source string, asJSON bool) error {
	res, err := e.ExecOpt(source, engine.ExecOptions{Filename: "<e>", IsJSON: asJSON})
	if err != nil {
		return reportException(e, err)
	}
	fmt.Println(e.ToJSONOrDebug(res, true))
	return nil
}

func reportException(e *engine.Engine, err error) error {
	if v, ok := e.GetThrownValue(); ok {
		return fmt.Errorf("uncaught exception: %s", e.ToJSONOrDebug(v, true))
	}
	return err
}
