// Command cabfile lists, tests and extracts Microsoft cabinet files.
//
//	cabfile -l <cabinet>          show the member table
//	cabfile -t <cabinet>          test the cabinet, print True or False
//	cabfile -e <cabinet> <target> extract every member below target
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/pchchv/cabfile"
	_ "github.com/pchchv/cabfile/fdi/mscf"
)

const (
	exitOK     = 0
	exitFalse  = 1
	exitFailed = 2
)

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("cabfile", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.Usage = func() {
		fmt.Fprintln(stderr, "usage: cabfile (-l | -t | -e) <cabinet> [target]")
		fset.PrintDefaults()
	}

	var list, test, extract bool
	fset.BoolVar(&list, "l", false, "show the member table")
	fset.BoolVar(&list, "list", false, "show the member table")
	fset.BoolVar(&test, "t", false, "test cabinet readability")
	fset.BoolVar(&test, "test", false, "test cabinet readability")
	fset.BoolVar(&extract, "e", false, "extract members into the target directory")
	fset.BoolVar(&extract, "extract", false, "extract members into the target directory")
	configPath := fset.String("config", "", "TOML config file (default $CABFILE_CONFIG)")
	engine := fset.String("engine", "", "decoder engine name")
	encoding := fset.String("encoding", "", "encoding of non UTF-8 member names")

	if err := fset.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailed
	}

	modes := 0
	for _, on := range []bool{list, test, extract} {
		if on {
			modes++
		}
	}

	rest := fset.Args()
	switch {
	case modes != 1:
		return usage(fset, stderr, "exactly one of -l, -t or -e is required")
	case len(rest) == 0:
		return usage(fset, stderr, "the cabinet argument is required")
	case extract && len(rest) < 2:
		return usage(fset, stderr, "the target argument is required with -e")
	case len(rest) > 2 || (!extract && len(rest) > 1):
		return usage(fset, stderr, "too many arguments")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	if *engine != "" {
		cfg.Engine = *engine
	}
	if *encoding != "" {
		cfg.Encoding = *encoding
	}

	cab, err := cabfile.Open(rest[0],
		cabfile.WithEngine(cfg.Engine),
		cabfile.WithTextEncoding(cfg.Encoding),
		cabfile.WithContinueOnError(cfg.ContinueOnError),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	defer cab.Close()

	ctx := context.Background()
	switch {
	case list:
		err = cab.PrintDir(ctx, stdout)
	case test:
		var ok bool
		if ok, err = cab.Test(ctx); err == nil {
			if ok {
				fmt.Fprintln(stdout, "True")
				return exitOK
			}
			fmt.Fprintln(stdout, "False")
			return exitFalse
		}
	case extract:
		_, err = cab.ExtractAll(ctx, rest[1])
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}

	return exitOK
}

func usage(fset *flag.FlagSet, stderr io.Writer, msg string) int {
	fmt.Fprintf(stderr, "cabfile: %s\n", msg)
	fset.Usage()
	return exitFailed
}
