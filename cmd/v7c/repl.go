package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/eddid/v7go/engine"
)

// runREPL drives an interactive read-eval-print loop, the same shape as a
// node/console-style REPL bundled with a scripting engine: a libedit-backed
// line reader with history, a colorized prompt when attached to a real
// terminal, and one compiled+executed statement per line.
func runREPL(e *engine.Engine) error {
	out := colorable.NewColorableStdout()
	interactive := isatty.IsTerminal(os.Stdin.Fd())

	prompt := "v7> "
	if interactive {
		prompt = color.New(color.FgGreen, color.Bold).Sprint("v7> ")
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := historyFilePath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted || err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == ".exit" || input == ".quit" {
			break
		}
		line.AppendHistory(input)

		res, execErr := e.Exec(input)
		if execErr != nil {
			if v, ok := e.GetThrownValue(); ok {
				printErr(out, interactive, e.ToJSONOrDebug(v, true))
				e.ClearThrownValue()
			} else {
				printErr(out, interactive, execErr.Error())
			}
			continue
		}
		fmt.Fprintln(out, e.ToJSONOrDebug(res, true))
	}

	if f, err := os.Create(historyPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	return nil
}

func printErr(out io.Writer, interactive bool, msg string) {
	if interactive {
		fmt.Fprintln(out, color.New(color.FgRed).Sprint(msg))
		return
	}
	fmt.Fprintln(out, msg)
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".v7c_history"
	}
	return home + "/.v7c_history"
}
