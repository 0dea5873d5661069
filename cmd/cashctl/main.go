package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/saeid-a/CoachLedgerBack/internal/config"
	"github.com/saeid-a/CoachLedgerBack/internal/database"
	"github.com/saeid-a/CoachLedgerBack/internal/logging"
	"github.com/saeid-a/CoachLedgerBack/internal/repository"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	logJSON  bool
}

// toolkit is what the subcommands work with once the database is up.
type toolkit struct {
	cfg         *config.Config
	pool        *pgxpool.Pool
	users       *repository.UserRepository
	mentorships *services.MentorshipService
	expenses    *services.ExpenseService
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	options := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "cashctl",
		Short:         "Maintenance commands for CoachLedger",
		Long:          `Batch maintenance for expenses, categories and mentorships.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Configure(options.logLevel, options.logJSON)
		},
	}
	cmd.PersistentFlags().StringVar(&options.logLevel, "log-level", "info", "log level")
	cmd.PersistentFlags().BoolVar(&options.logJSON, "log-json", false, "log as JSON")

	cmd.AddCommand(newMarkOverdueCmd())
	cmd.AddCommand(newSeedCategoriesCmd())
	cmd.AddCommand(newImportMentorshipsCmd())
	cmd.AddCommand(newPurgeMentorshipsCmd())
	return cmd
}

// withToolkit connects to the database, wires the services and runs fn.
func withToolkit(ctx context.Context, fn func(*toolkit) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DBUrl == "" {
		return fmt.Errorf("DB_URL is required")
	}

	pool, err := database.NewPool(ctx, cfg.DBUrl, database.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	expenseRepo := repository.NewExpenseRepository(pool)
	cashService := services.NewCashService(
		pool,
		repository.NewCashRegisterRepository(pool),
		repository.NewCashSessionRepository(pool),
		repository.NewCashMovementRepository(pool),
		expenseRepo,
		nil,
	)

	kit := &toolkit{
		cfg:         cfg,
		pool:        pool,
		users:       userRepo,
		mentorships: services.NewMentorshipService(repository.NewMentorshipRepository(pool), userRepo, cfg.Batch),
		expenses: services.NewExpenseService(
			repository.NewExpenseCategoryRepository(pool),
			expenseRepo,
			cashService,
			nil,
			nil,
			cfg.Batch,
		),
	}

	if err := fn(kit); err != nil {
		log.Error().Err(err).Msg("Command failed")
		return err
	}
	return nil
}
