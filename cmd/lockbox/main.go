package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lockbox/internal/app"
	"lockbox/internal/config"
	"lockbox/internal/lockbox"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file named by the defaults.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp(operation string) (*app.App, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func newTokenSecret() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "lockbox",
	Short:        "Encrypted file store with sharing",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		secret, err := newTokenSecret()
		if err != nil {
			return err
		}

		instanceID := uuid.New().String()
		cfg := defaults.NewConfig(instanceID, secret)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults.BaseDir)
		fmt.Printf("Listen:      %s\n", cfg.Server.Listen)
		fmt.Println("Next: " + color.YellowString("lockbox key init") + " and " + color.YellowString("lockbox db migrate"))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Listen:      %s\n", cfg.Server.Listen)
		fmt.Printf("Encryption:  %s (%s)\n", orDefault(cfg.Encryption.Type, "age"), cfg.Encryption.KeyPath)
		fmt.Printf("Vault:       %s\n", orDefault(cfg.Vault.Type, "filesystem"))
		fmt.Printf("Database:    %s\n", orDefault(cfg.Database.Type, "sqlite"))
		fmt.Printf("Sessions:    %s\n", orDefault(cfg.Sessions.Type, "memory"))
		fmt.Printf("Staging:     %s (max %d bytes)\n", orDefault(cfg.Staging.Type, "filesystem"), cfg.Staging.MaxSize)
		return nil
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the encryption key",
}

var keyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		keys, err := app.InitKey(cfg.Encryption)
		if err != nil {
			return err
		}

		if keys.Created() {
			fmt.Println(color.GreenString("✓") + " Generated " + keys.Kind() + " key at " + keys.Path())
			fmt.Println(color.CyanString("→") + " Back this file up: content cannot be decrypted without it")
			return nil
		}
		fmt.Println(color.CyanString("→") + " Using existing " + keys.Kind() + " key at " + keys.Path())
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		migrated, err := app.MigrateDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		if !migrated {
			fmt.Printf("Database type %q has no schema to migrate.\n", cfg.Database.Type)
			return nil
		}
		fmt.Println(color.GreenString("✓") + " Database schema is up to date")
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword()
		if err != nil {
			return err
		}

		a, err := newApp("user-add")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddUser(args[0], password); err != nil {
			return fmt.Errorf("adding user: %w", err)
		}
		fmt.Println(color.GreenString("✓") + " Created user " + color.YellowString(args[0]))
		return nil
	},
}

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

// logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("logs")
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.AuditLog()
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No audit events recorded.")
			return nil
		}
		if limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}

		for _, e := range events {
			fmt.Printf("%s  %s  %-10s  %s\n",
				e.Time.UTC().Format("2006-01-02 15:04:05"),
				kindColor(e.Kind)("%-14s", e.Kind),
				e.User,
				e.Detail,
			)
		}
		return nil
	},
}

func kindColor(kind lockbox.EventKind) func(format string, a ...interface{}) string {
	switch kind {
	case lockbox.EventUploadBlocked:
		return color.RedString
	case lockbox.EventUploadSafe, lockbox.EventRegister:
		return color.GreenString
	case lockbox.EventDelete, lockbox.EventShare, lockbox.EventEdit:
		return color.YellowString
	default:
		return color.CyanString
	}
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)

		a, err := newApp("serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Serve(ctx)
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keyCmd.AddCommand(keyInitCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	userCmd.AddCommand(userAddCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	rootCmd.AddCommand(serveCmd)
}
