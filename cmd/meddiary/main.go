package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mweber/meddiary/internal/api"
	"github.com/mweber/meddiary/internal/auth"
	"github.com/mweber/meddiary/internal/config"
	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/monitor"
	"github.com/mweber/meddiary/internal/store"
)

var (
	dbPath     string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "meddiary",
		Short: "Personal medication-monitoring diary",
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	return cfg, nil
}

func getStore(cfg *config.Config) (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DatabasePath)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the diary API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			s, err := getStore(cfg)
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			server := api.New(monitor.New(s), auth.New(s, cfg.TokenTTL), cfg.Addr)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userAddCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "add [email]",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := getStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			user, err := auth.New(s, cfg.TokenTTL).Register(args[0], name, password)
			if err != nil {
				return err
			}

			fmt.Printf("Created user %s (%s)\n", user.Email, user.ID[:8])
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (min 8 characters)")
	return cmd
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [email]",
		Short: "List a user's monitoring sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := getStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			user, _, err := s.UserByEmail(args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user not found: %s", args[0])
			}

			sessions, err := monitor.New(s).Sessions(user.ID)
			if err != nil {
				return err
			}

			if len(sessions) == 0 {
				fmt.Println("No monitoring sessions yet.")
				return nil
			}

			for _, sess := range sessions {
				status := "ended"
				if sess.IsActive {
					status = "active"
				} else if sess.StoppedAt != nil {
					status = "stopped"
				}
				fmt.Printf("%s  %s %s  %s to %s  %d entries  [%s]\n",
					sess.ID[:8], sess.MedicationName, sess.Dosage,
					dateutil.FormatDate(sess.MonitoringFrom),
					dateutil.FormatDate(sess.MonitoringTo),
					sess.EntryCount, status)
			}

			return nil
		},
	}
}
