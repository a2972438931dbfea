// Package cli implements dispatchctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"time"

	"dispatch_bot_backend/internal/repository"
	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/db"
	"dispatch_bot_backend/platform/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

// NewRootCmd assembles the dispatchctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Operator tools for the dispatch bot",
		Long: `dispatchctl assigns service orders to technicians, manages staff
records and resets stuck conversations.

It reads the same environment (.env) as the API server.`,
		SilenceUsage: true,
	}

	root.AddCommand(AssignCmd())
	root.AddCommand(StaffCmd())
	root.AddCommand(SessionCmd())
	root.AddCommand(TokenCmd())
	return root
}

// env is what database-backed commands need.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	repo *repository.Repository
	done func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, log: log, repo: repository.New(pool, log), done: pool.Close}, nil
}
