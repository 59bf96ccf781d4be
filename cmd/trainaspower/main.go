package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/claude/trainaspower/internal/config"
	"github.com/claude/trainaspower/internal/ingest"
	"github.com/claude/trainaspower/internal/ingest/trainasone"
	"github.com/claude/trainaspower/internal/logging"
	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/stryd"
	"github.com/claude/trainaspower/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "fetch and convert but don't change Final Surge")
	workouts := flag.Int("workouts", 0, "number of upcoming workouts to sync (overrides config)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("trainaspower", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.Open(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	log.Info("TrainAsPower starting", "version", Version)

	for _, w := range cfg.Warnings {
		log.Warn("config", "warning", w)
	}
	if err := cfg.RequireSync(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if *workouts > 0 {
		cfg.NumberOfWorkouts = *workouts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dryRun, log); err != nil {
		log.Error("sync failed", "error", err)
		stop()
		closer.Close()
		os.Exit(1)
	}
	log.Info("sync complete")
}

func run(ctx context.Context, cfg *config.Config, dryRun bool, log *slog.Logger) error {
	// Stryd
	strydClient := stryd.NewClient(stryd.DefaultBaseURL)
	if err := strydClient.Login(ctx, cfg.Stryd.Email, cfg.Stryd.Password); err != nil {
		return fmt.Errorf("stryd: %w", err)
	}
	power := stryd.NewResolver(strydClient)
	log.Info("logged in", "service", "stryd")

	// TrainAsOne
	taoClient, err := trainasone.NewClient(trainasone.DefaultBaseURL)
	if err != nil {
		return err
	}
	if err := taoClient.Login(ctx, cfg.TrainAsOne.Email, cfg.TrainAsOne.Password); err != nil {
		return fmt.Errorf("trainasone: %w", err)
	}
	log.Info("logged in", "service", "trainasone")
	source := trainasone.NewSource(taoClient, trainasone.Options{
		Format:             ingest.Kind(cfg.SourceFormat),
		IncludeRunBackStep: cfg.IncludeRunBackStep,
	}, log)

	// Final Surge (logged in for dry runs too: cancelled-workout checks read it)
	fsClient := upload.NewClient(upload.DefaultBaseURL)
	if err := fsClient.Login(ctx, cfg.FinalSurge.Email, cfg.FinalSurge.Password); err != nil {
		return fmt.Errorf("finalsurge: %w", err)
	}
	log.Info("logged in", "service", "finalsurge")

	state, err := upload.OpenStateDB(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}
	defer state.Close()

	if dryRun {
		log.Info("DRY RUN mode: workouts will be converted but Final Surge is left untouched")
	}

	uploader := upload.New(source, fsClient, power, state, upload.Options{
		NumberOfWorkouts: cfg.NumberOfWorkouts,
		Adjust:           models.PowerAdjust{Low: cfg.PowerAdjust[0], High: cfg.PowerAdjust[1]},
		PaceOnly:         cfg.PaceOnly,
		DryRun:           dryRun,
	}, log)
	stats, err := uploader.Run(ctx)
	if stats != nil {
		printStats(stats, state.Dir())
	}
	return err
}

func printStats(stats *upload.Stats, stateDir string) {
	fmt.Println()
	fmt.Println("=== Sync Summary ===")
	fmt.Printf("  Run:                %s\n", stats.RunID)
	fmt.Printf("  Workouts fetched:   %d\n", stats.WorkoutsFetched)
	fmt.Printf("  Workouts created:   %d\n", stats.WorkoutsCreated)
	fmt.Printf("  Workouts updated:   %d\n", stats.WorkoutsUpdated)
	fmt.Printf("  Workouts unchanged: %d\n", stats.WorkoutsUnchanged)
	fmt.Printf("  Workouts removed:   %d (cancelled)\n", stats.WorkoutsRemoved)
	fmt.Printf("  Workouts errored:   %d\n", stats.WorkoutsErrored)

	if stats.SnapshotsSaved > 0 {
		fmt.Printf("\n  Saved %d source snapshot(s) for debugging in %s\n", stats.SnapshotsSaved, stateDir)
	}
	fmt.Println()
}
