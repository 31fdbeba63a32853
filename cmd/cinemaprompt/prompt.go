package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/cinemaprompt/internal/config"
	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/amaumene/cinemaprompt/internal/utils"
	"github.com/spf13/cobra"
)

type promptOptions struct {
	email    string
	password string
	genre    string
}

func newPromptCommand() *cobra.Command {
	opts := &promptOptions{}

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print a recommendation prompt built from your saved movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := runPrompt(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.password, "password", "", "account password")
	cmd.Flags().StringVar(&opts.genre, "genre", "", "genre to ask recommendations for")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("genre")

	return cmd
}

func runPrompt(ctx context.Context, opts *promptOptions) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := utils.NewCLILogger(cfg.LogLevel)

	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	provider := identity.NewProvider(cfg, db, logger)
	id, err := provider.SignIn(ctx, opts.email, opts.password)
	if err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			return "", errors.New(authErr.Message())
		}
		return "", err
	}

	movies, err := moviestore.NewAdapter(db, logger).List(ctx, id.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load movies: %w", err)
	}

	text, err := controllers.ComposePrompt(movies, opts.genre)
	if err != nil {
		var promptErr *controllers.PromptError
		if errors.As(err, &promptErr) {
			return "", errors.New(promptErr.Message)
		}
		return "", err
	}
	return text, nil
}
