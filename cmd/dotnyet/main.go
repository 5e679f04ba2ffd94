// Command dotnyet runs compiled .NYET bytecode programs.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dotnyet/vm/pkg/bytecode"
	"github.com/dotnyet/vm/pkg/value"
	"github.com/dotnyet/vm/pkg/vm"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return boolToExit(len(args) == 0)
	}
	if isVersion(args[0]) {
		fmt.Println("dotnyet", version)
		return 0
	}
	if args[0] != "run" {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		return 1
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	logLevel := fs.String("l", "info", "log level: debug, info, warn, error")
	fs.StringVar(logLevel, "log-level", "info", "log level: debug, info, warn, error")
	noVerify := fs.Bool("n", false, "skip envelope verification, load as a bare image")
	fs.BoolVar(noVerify, "no-verify", false, "skip envelope verification, load as a bare image")

	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dotnyet run <file> [-- args...]")
		return 1
	}
	path := rest[0]
	programArgs := rest[1:]
	if len(programArgs) > 0 && programArgs[0] == "--" {
		programArgs = programArgs[1:]
	}

	log := newLogger(*logLevel)

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to read program")
		return 1
	}

	loader := bytecode.NewLoader(log)

	var prog *bytecode.Program
	if *noVerify {
		prog, err = loader.LoadBare(raw)
	} else {
		if !hasValidEnvelope(raw) {
			log.Warn().Msg("no recognized NYET envelope found, continuing in bare-image mode")
		}
		prog, err = loader.Load(raw)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load program")
		return 1
	}

	interp := vm.New(prog, vm.WithLogger(log))
	if err := interp.OperandStack().Push(value.NewString(strings.Join(programArgs, " "))); err != nil {
		log.Error().Err(err).Msg("failed to seed argv")
		return 1
	}

	if err := interp.Run(); err != nil {
		log.Error().Err(err).Msg("program trapped")
		return 1
	}
	return 0
}

func isHelp(arg string) bool    { return arg == "-h" || arg == "--help" }
func isVersion(arg string) bool { return arg == "-v" || arg == "--version" }

func boolToExit(noArgs bool) int {
	if noArgs {
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(`dotnyet run <file> [-- args...]

  -h, --help             show this help and exit
  -v, --version          print the version and exit
  -l, --log-level LEVEL  debug, info, warn, error (default info)
  -n, --no-verify        skip envelope magic/version verification`)
}

// hasValidEnvelope reports whether raw begins with the "NYET" magic
// and the known version byte.
func hasValidEnvelope(raw []byte) bool {
	return len(raw) >= 5 && string(raw[:4]) == string(bytecode.Magic[:]) && raw[4] == bytecode.Version
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}
