package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/tickerpulse/internal/config"
	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/storage"
	"github.com/rewired-gh/tickerpulse/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

const usage = `Usage: tickerpulse [-config path] <command> [flags]

Commands:
  scrape    fetch today's posts and comments once and store them
  serve     run the scrape job on its schedule
  import    load CSV snapshots and a volume CSV into the database
  analyze   compute the incidence report and its power
  summary   describe the stored records and the most mentioned tickers
`

// app bundles what every command needs.
type app struct {
	cfg      *config.Config
	store    *storage.Storage
	telegram *telegram.Client
}

func main() {
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(flag.Arg(0), flag.Args()[1:]))
}

func run(cmd string, args []string) int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	a := &app{cfg: cfg, store: store}
	if cfg.Telegram.Enabled {
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	switch cmd {
	case "scrape":
		err = a.scrape(ctx, args)
	case "serve":
		err = a.serve(ctx, args)
	case "import":
		err = a.importFiles(args)
	case "analyze":
		err = a.analyze(ctx, args)
	case "summary":
		err = a.summary(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		return 2
	}
	if err != nil {
		logger.Error("%s failed: %v", cmd, err)
		return 1
	}
	return 0
}
