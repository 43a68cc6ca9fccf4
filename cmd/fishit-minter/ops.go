package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/FishIT-Mantle/fishit-sub000/internal/app"
	"github.com/FishIT-Mantle/fishit-sub000/internal/db"
	"github.com/FishIT-Mantle/fishit-sub000/internal/dto"
	"github.com/FishIT-Mantle/fishit-sub000/internal/handlers"
	"github.com/FishIT-Mantle/fishit-sub000/internal/services"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/spf13/cobra"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseItemIDArg(raw string) (uint64, error) {
	itemID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return itemID, nil
}

// withPipeline runs fn against a fully wired container and tears it down
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, c *app.ServiceContainer) error) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.NewServiceContainer(cfg, log)
	if err != nil {
		return err
	}
	defer container.Cleanup()

	if err := container.InitPipeline(ctx); err != nil {
		return err
	}
	return fn(ctx, container)
}

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retry sweep over failed and stuck records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, func(ctx context.Context, c *app.ServiceContainer) error {
				result, err := c.Scheduler.Sweep(ctx)
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func pollCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Scan the next block window for FishMinted events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, func(ctx context.Context, c *app.ServiceContainer) error {
				result, err := c.Watcher.Poll(ctx)
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func processCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <itemId>",
		Short: "Drive one mint record through the remaining stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemIDArg(args[0])
			if err != nil {
				return err
			}
			return withPipeline(cmd, func(ctx context.Context, c *app.ServiceContainer) error {
				processErr := c.Pipeline.Process(ctx, itemID)
				if rec, err := c.MintRepo.Get(ctx, itemID); err == nil {
					if err := printJSON(dto.NewMintRecordResponse(rec)); err != nil {
						return err
					}
				}
				return processErr
			})
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <itemId>",
		Short: "Show the stored mint record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemIDArg(args[0])
			if err != nil {
				return err
			}
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if err := cfg.ValidateDatabase(); err != nil {
				return err
			}

			container, err := app.NewServiceContainer(cfg, log)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			rec, err := container.MintRepo.Get(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			return printJSON(dto.NewMintRecordResponse(rec))
		},
	}
}

func totpSecretCommand() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "totp-secret",
		Short: "Generate a TOTP secret for the admin login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := handlers.GenerateTOTPSecret(account)
			if err != nil {
				return err
			}
			fmt.Printf("Secret: %s\n", key.Secret())
			fmt.Printf("URL:    %s\n", key.URL())
			fmt.Println("Set FISHIT_ADMIN_TOTP_SECRET or admin.totpSecret to the secret")
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "admin", "account name shown in the authenticator app")
	return cmd
}

func adminTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "admin-token",
		Short: "Sign an admin API token with the configured JWT secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return &types.ConfigurationError{Field: "admin.jwtSecret", Reason: "required"}
			}

			auth := handlers.NewAdminAuthHandler(cfg.Admin, log)
			token, expiresAt, err := auth.GenerateAdminJWTToken(cfg.Admin.Username)
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func verifyDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-db",
		Short: "Check the database and checkpoint store and print record counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if err := cfg.ValidateDatabase(); err != nil {
				return err
			}

			container, err := app.NewServiceContainer(cfg, log)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			ctx := cmd.Context()
			if err := db.Ping(ctx, container.DB); err != nil {
				return fmt.Errorf("database ping failed: %w", err)
			}
			counts, err := container.MintRepo.CountByStatus(ctx)
			if err != nil {
				return err
			}
			block, found, err := container.Checkpoints.Load(ctx, services.FishMintedCheckpoint)
			if err != nil {
				return err
			}

			out := map[string]interface{}{
				"driver":             cfg.Database.Driver,
				"checkpoint_backend": cfg.Checkpoint.Backend,
				"counts":             counts,
				"checkpoint":         nil,
			}
			if found {
				out["checkpoint"] = block
			}
			return printJSON(out)
		},
	}
}
