package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/patient-records/internal/config"
	"github.com/iliyamo/patient-records/internal/queue"
	"github.com/iliyamo/patient-records/internal/service"
	"github.com/iliyamo/patient-records/internal/utils"
)

func bootstrapAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first SuperAdmin and print its generated password",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver == config.StoreMemory {
				return errors.New("bootstrap-admin needs a persistent store, STORE_DRIVER is memory")
			}
			logger := newLogger(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := openStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			hasher, err := utils.NewPasswordHasher(cfg.AuthSalt)
			if err != nil {
				return err
			}
			tokens := utils.NewTokenIssuer(cfg.JWTKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
			refresh := service.NewRefreshTokenStore(st.refresh, cfg.RefreshTTL())
			var events service.EventPublisher = queue.NopPublisher{}
			if cfg.AuditEnabled {
				events = queue.NewPublisher(cfg.RabbitMQURL, logger)
			}
			users := service.NewUserService(st.users, service.NewDecider(st.users, tokens), hasher, refresh,
				cfg.AuthPasswordMinLength, events, logger)

			u, password, err := users.BootstrapSuperAdmin(ctx, username, email)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created SuperAdmin %q (id %d)\n", u.Username, u.ID)
			fmt.Fprintf(out, "password: %s\n", password)
			fmt.Fprintln(out, "the password is shown only once")
			return nil
		},
	}
	cmd.Flags().String("username", "", "SuperAdmin username")
	cmd.Flags().String("email", "", "SuperAdmin email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its hash with the configured salt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			hasher, err := utils.NewPasswordHasher(cfg.AuthSalt)
			if err != nil {
				return fmt.Errorf("AUTH_SALT: %w", err)
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("empty password")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hasher.Hash(password))
			return nil
		},
	}
}
