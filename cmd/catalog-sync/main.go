// Command catalog-sync runs catalog syncs and backup maintenance against a
// deckvault database without starting the API server.
//
// Usage:
//
//	catalog-sync [flags] sync
//	catalog-sync [flags] backup
//	catalog-sync [flags] list
//	catalog-sync [flags] restore <filename> [--overwrite]
//	catalog-sync [flags] prune <keep>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/backup"
	"github.com/ramonehamilton/deckvault/internal/catalog"
	"github.com/ramonehamilton/deckvault/internal/config"
	"github.com/ramonehamilton/deckvault/internal/logging"
	"github.com/ramonehamilton/deckvault/internal/storage"
)

var (
	configPath = pflag.StringP("config", "c", "deckvault.toml", "Path to the TOML config file")
	dbPath     = pflag.String("db-path", "", "Database path (overrides config)")
	overwrite  = pflag.Bool("overwrite", false, "Restore: wipe user data before restoring")
	noBackup   = pflag.Bool("no-backup", false, "Sync: skip the pre-sync backup")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: catalog-sync [flags] sync|backup|list|restore <file>|prune <keep>\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "catalog-sync: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dbConfig := storage.DefaultConfig(cfg.Database.Path)
	dbConfig.AutoMigrate = true
	db, err := storage.Open(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := backup.Options{Dir: cfg.Backup.Dir, Logger: logging.Component(logger, "backup")}
	if s3cfg := cfg.Backup.S3; s3cfg.Bucket != "" {
		mirror, err := backup.NewS3Mirror(ctx, backup.S3Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			Prefix:          s3cfg.Prefix,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		opts.Mirror = mirror
	}
	manager := backup.NewManager(db, opts)

	switch args[0] {
	case "sync":
		return runSync(ctx, cfg, db, manager, logger)

	case "backup":
		info, err := manager.Create(ctx, backup.TypeManual)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%d bytes)\n", info.Filename, info.Size)
		return nil

	case "list":
		infos, err := manager.List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILENAME\tTYPE\tCREATED\tSIZE")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", info.Filename, info.Type, info.CreatedAt.Format("2006-01-02 15:04:05"), info.Size)
		}
		return w.Flush()

	case "restore":
		if len(args) < 2 {
			return fmt.Errorf("restore requires a backup filename")
		}
		result, err := manager.Restore(ctx, args[1], *overwrite)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d users, %d decks, %d deck cards, %d owned printings (%d failed, %d not found)\n",
			result.Users, result.Decks, result.DeckCards, result.OwnedPrintings, result.Failed, result.NotFound)
		for _, e := range result.Errors {
			fmt.Printf("  %s: %s\n", e.Item, e.Message)
		}
		return nil

	case "prune":
		if len(args) < 2 {
			return fmt.Errorf("prune requires the number of scheduled backups to keep")
		}
		keep, err := strconv.Atoi(args[1])
		if err != nil || keep < 1 {
			return fmt.Errorf("invalid keep count %q", args[1])
		}
		removed, err := manager.Prune(ctx, keep)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d scheduled backups\n", removed)
		return nil

	default:
		pflag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runSync(ctx context.Context, cfg *config.Config, db *storage.DB, manager *backup.Manager, logger *zap.Logger) error {
	log := logging.Component(logger, "catalog")
	client := catalog.NewClient(catalog.ClientOptions{BaseURL: cfg.Catalog.BaseURL, Logger: log})
	source := catalog.NewRemoteSource(client, cfg.Catalog.DataDir, log)

	var preSync catalog.PreSyncHook = manager.PreSync
	if *noBackup {
		preSync = nil
	}
	syncer := catalog.NewSyncer(source, catalog.NewImporter(db, log), preSync, nil, log)

	stats, err := syncer.Run(ctx, "cli")
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d sets, %d cards, %d printings, %d prices in %s\n",
		stats.Sets, stats.Cards, stats.Printings, stats.Prices, stats.Duration)
	if n := stats.NotFound(); n > 0 {
		fmt.Printf("%d user references could not be re-resolved\n", n)
	}
	return nil
}
