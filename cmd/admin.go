package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/acuhire/internal/auth"
	authPostgres "github.com/frahmantamala/acuhire/internal/auth/postgres"
	"github.com/frahmantamala/acuhire/internal/core/common/validation"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	adminEmail string
	adminName  string
)

// Admins cannot sign up through the API; this is the only way to create one.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		email := validation.NormalizeEmail(adminEmail)
		if !validation.IsEmail(email) {
			return fmt.Errorf("a valid --email is required")
		}
		if adminName == "" {
			adminName = "Administrator"
		}

		password, err := readPassword()
		if err != nil {
			return err
		}
		if !validation.IsStrongPassword(password, cfg.Security.PasswordMinLength) {
			return fmt.Errorf("password must be at least %d characters and contain a letter and a digit", cfg.Security.PasswordMinLength)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		gdb, err := initGorm(db, cfg.App.IsProduction())
		if err != nil {
			return err
		}

		hash, err := auth.NewBcryptHasher(cfg.Security.BCryptCost).Hash(password)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		u := &coreUser.User{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         adminName,
			PasswordHash: hash,
			Role:         coreUser.RoleAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := authPostgres.NewCredentialRepository(gdb).Create(context.Background(), u); err != nil {
			if errors.Is(err, auth.ErrEmailTaken) {
				return fmt.Errorf("%s is already registered", email)
			}
			return err
		}
		fmt.Println("Created admin:", email, "id:", u.ID)
		return nil
	},
}

// readPassword prompts without echo on a terminal and reads one line from
// stdin otherwise.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm password: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email address")
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "admin display name")
}
