// Package main provides the entry point for the Lumen toolchain.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumen-lang/lumen/internal/backend/native"
	"github.com/lumen-lang/lumen/internal/driver"
	"github.com/lumen-lang/lumen/internal/runtime"
)

var version = "0.1.0"

func main() {
	flag.Usage = showUsage
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Lumen v%s (abi %s)\n", version, runtime.ABIVersion)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		showUsage()
		os.Exit(2)
	}
	if err := run(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		os.Exit(1)
	}
}

func run(verb string, args []string) error {
	fs := flag.NewFlagSet(verb, flag.ExitOnError)
	strict := fs.Bool("strict-match", false, "treat non-exhaustive matches as errors")
	moduleName := fs.String("module", "", "override the artifact module name")
	out := fs.String("o", "", "write output to file instead of stdout")
	watch := fs.Bool("watch", false, "rerun on file change (run only)")
	library := fs.Bool("library", false, "emit a linkable library instead of an executable (emit-c only)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("%s takes exactly one input file", verb)
	}
	path := fs.Arg(0)
	opts := driver.Options{ModuleName: *moduleName, StrictMatch: *strict}

	if verb == "run" && *watch {
		return watchLoop(path, opts)
	}

	prog, err := driver.LoadProgram(path)
	if err != nil {
		return err
	}
	build, err := driver.Compile(prog, opts)
	if err != nil {
		build.Bag.Write(os.Stderr)
		return err
	}
	if build.Bag.Len() > 0 {
		build.Bag.Write(os.Stderr)
	}

	switch verb {
	case "check":
		return nil
	case "run":
		return build.Run(os.Stdout)
	case "kernel-json":
		data, err := build.KernelJSON()
		if err != nil {
			return err
		}
		return write(*out, data)
	case "native-json":
		data, err := build.NativeJSON()
		if err != nil {
			return err
		}
		return write(*out, data)
	case "emit-c":
		kind := native.Executable
		if *library {
			kind = native.Library
		}
		src, err := build.EmitC(kind)
		if err != nil {
			return err
		}
		return write(*out, []byte(src))
	case "build-obj":
		obj, err := build.Object()
		if err != nil {
			return err
		}
		if *out == "" {
			return fmt.Errorf("build-obj requires -o")
		}
		return os.WriteFile(*out, obj, 0o644)
	default:
		showUsage()
		return fmt.Errorf("unknown command %q", verb)
	}
}

func watchLoop(path string, opts driver.Options) error {
	w, err := driver.NewWatcher(path, os.Stdout, os.Stderr, driver.WatchOptions{
		Debounce: 200 * time.Millisecond,
		Build:    opts,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func write(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func showUsage() {
	fmt.Fprintln(os.Stderr, "Lumen - language toolchain")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "USAGE:")
	fmt.Fprintln(os.Stderr, "    lumen <command> [options] <input.json>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "COMMANDS:")
	fmt.Fprintln(os.Stderr, "    check        Type-check and report diagnostics")
	fmt.Fprintln(os.Stderr, "    run          Compile in-process and execute (use --watch to rerun on change)")
	fmt.Fprintln(os.Stderr, "    kernel-json  Dump the desugared core program")
	fmt.Fprintln(os.Stderr, "    native-json  Dump the target form with typed specializations")
	fmt.Fprintln(os.Stderr, "    emit-c       Emit ahead-of-time C source (--library for linkable form)")
	fmt.Fprintln(os.Stderr, "    build-obj    Write the relocatable machine-code artifact (-o required)")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "OPTIONS:")
	fmt.Fprintln(os.Stderr, "    --strict-match   Treat non-exhaustive matches as errors")
	fmt.Fprintln(os.Stderr, "    --module NAME    Override the artifact module name")
	fmt.Fprintln(os.Stderr, "    --version        Show version information")
}
