package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-phish-guard/internal/adapters/storage"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/mikey/llm-phish-guard/internal/di"
	"go.uber.org/zap"
)

const usage = `Usage: phish-guard [flags] <command> [arguments]

Commands:
  analyze [-email] [-mobile] [-country CC] [-extract-links] [-file PATH] [CONTENT]
                  analyze a URL or email (reads stdin when CONTENT is "-" or missing)
  watch           read URLs line by line from stdin and analyze them once typing settles
  history [list]  list past analyses
  history show ID print a past analysis
  history clear   delete all past analyses
  chat            talk to the GuardBot assistant

Flags:
`

func main() {
	fs := flag.NewFlagSet("phish-guard", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	flags, err := di.ParseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Printf("Failed to parse flags: %v\n", err)
		os.Exit(2)
	}
	if len(flags.Args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = container.Invoke(func(
		logger *zap.Logger,
		cfg *config.Config,
		orchestrator *core.Orchestrator,
		inferrer core.Inferrer,
		store storage.Store,
	) error {
		defer logger.Sync()
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close history store", zap.Error(err))
			}
		}()
		defer func() {
			if closer, ok := inferrer.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Failed to close LLM client", zap.Error(err))
				}
			}
		}()
		defer orchestrator.Stop()

		analysisCfg, err := cfg.GetAnalysis()
		if err != nil {
			return err
		}

		c := &cli{
			service:       orchestrator,
			in:            os.Stdin,
			out:           os.Stdout,
			jsonOutput:    flags.JSONOutput,
			provider:      cfg.GetLLM().Provider,
			settleTimeout: analysisCfg.DebounceDelay + analysisCfg.Timeout,
		}
		return c.run(ctx, flags.Args)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
