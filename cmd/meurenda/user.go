package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meurenda/internal/auth"
	"meurenda/internal/cache"
	"meurenda/internal/cli"
	"meurenda/internal/log"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an account with the given email. The password is read from
--password or, when omitted, from the first line of standard input.`,
		Example: `  echo 's3cret-pass' | meurenda user create --email ana@example.com`,
		RunE:    runUserCreate,
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password from stdin: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	res, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, cache.NewLRUCache[struct{}](1, cfg.TokenTTL))
	u, _, err := auth.NewService(res.Store, tokens).Register(ctx, email, password)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	logger.Info("User created", log.FieldUserID, u.ID, log.FieldOperation, log.OpRegister)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.ID, u.Email)
	return nil
}
