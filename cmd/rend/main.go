// Rend CLI - the main entry point for running Rend scripts.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/rendlang/rend/config"
	"github.com/rendlang/rend/core"
	"github.com/rendlang/rend/core/dist"
	"github.com/rendlang/rend/server"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive console")
	noRC := flag.Bool("no-rc", false, "Skip loading ~/.rendrc")
	serveMode := flag.Bool("serve", false, "Start evaluation server (Connect HTTP/JSON)")
	servePort := flag.Int("port", 0, "Evaluation server port (used with --serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rend [options] [scripts...]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates the given .rend scripts in order.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rend -i                # Start console\n")
		fmt.Fprintf(os.Stderr, "  rend script.rend       # Run a script\n")
		fmt.Fprintf(os.Stderr, "  rend --serve --port 8080  # Serve evaluation over HTTP\n")
	}
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := config.FindAndLoad(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := cfg.Log.Verbosity
	if *verbose && verbosity < 1 {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	in := core.NewInterp(core.Options{
		PoolScale:    cfg.Memory.PoolScale,
		Ballast:      cfg.Memory.BallastBytes,
		AlwaysMalloc: cfg.Memory.AlwaysMalloc,
		ProbeOnFail:  cfg.Log.WatchFail,
	})

	var cache *dist.ScanCache
	if cfg.Cache.Enabled {
		cache, err = dist.OpenCache(cfg.CachePath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: scan cache unavailable: %v\n", err)
		}
	}

	if !*noRC {
		if err := loadRC(in, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading ~/.rendrc: %v\n", err)
		}
	}

	scripts := flag.Args()
	for _, path := range scripts {
		if err := runScript(in, cache, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *serveMode {
		port := *servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		addr := fmt.Sprintf(":%d", port)
		opts := []server.ServerOption{}
		if cache != nil {
			opts = append(opts, server.WithScanCache(cache))
		}
		srv := server.New(in, opts...)
		defer srv.Stop()
		if err := srv.ListenAndServe(addr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive || len(scripts) == 0 {
		runConsole(in, cache)
	}
}

// loadRC evaluates ~/.rendrc if it exists.
func loadRC(in *core.Interp, verbose bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	rcPath := filepath.Join(home, ".rendrc")
	if _, err := os.Stat(rcPath); os.IsNotExist(err) {
		return nil
	}

	if verbose {
		fmt.Printf("Loading %s\n", rcPath)
	}
	return runScript(in, nil, rcPath)
}

// runScript evaluates one script file, reporting failures as errors.
func runScript(in *core.Interp, cache *dist.ScanCache, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	block, err := dist.ScanCached(in, cache, string(content))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var out core.Cell
	failure := in.RescueError(func() {
		if r := in.RunBlock(&out, block); r == core.RetThrown {
			in.Fail("uncaught throw in script")
		}
	})
	if failure != nil {
		return fmt.Errorf("%s:\n%s", path, in.MoldError(failure))
	}
	return nil
}

// runConsole starts an interactive read-eval-print loop.
func runConsole(in *core.Interp, cache *dist.ScanCache) {
	fmt.Println("Rend console (type 'exit' to quit)")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	lineBuffer := strings.Builder{}

	for {
		if lineBuffer.Len() == 0 {
			fmt.Print(">> ")
		} else {
			fmt.Print(".. ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if lineBuffer.Len() == 0 && (line == "exit" || line == "quit") {
			break
		}

		// A trailing backslash continues on the next line.
		if strings.HasSuffix(line, "\\") {
			lineBuffer.WriteString(strings.TrimSuffix(line, "\\"))
			lineBuffer.WriteString("\n")
			continue
		}

		lineBuffer.WriteString(line)
		input := strings.TrimSpace(lineBuffer.String())
		lineBuffer.Reset()

		if input != "" {
			evalAndPrint(in, cache, input)
		}
	}

	fmt.Println()
}

// evalAndPrint evaluates an expression and prints the molded result.
func evalAndPrint(in *core.Interp, cache *dist.ScanCache, input string) {
	block, err := dist.ScanCached(in, cache, input)
	if err != nil {
		fmt.Printf("** %v\n", err)
		return
	}

	var out core.Cell
	failure := in.RescueError(func() {
		if r := in.RunBlock(&out, block); r == core.RetThrown {
			in.Fail("uncaught throw")
		}
	})
	if failure != nil {
		fmt.Println(in.MoldError(failure))
		return
	}

	if out.IsNulled() {
		fmt.Println("; null")
		return
	}
	fmt.Printf("== %s\n", in.MoldCell(&out))
}
