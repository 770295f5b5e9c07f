package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rl1809/inventory-tracker/internal/adapter/auth"
	"github.com/rl1809/inventory-tracker/internal/adapter/csvimport"
	"github.com/rl1809/inventory-tracker/internal/adapter/storage"
	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/service"
	"github.com/rl1809/inventory-tracker/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Schema is up to date.")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import [file.csv]",
	Short:   "Import a CSV stock sheet, upserting lots by batch and part",
	Example: `  inventoryd import stock.csv
  inventoryd import stock.csv --db-driver mysql --db-dsn "user:pass@tcp(localhost:3306)/inventory"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh-metrics",
	Short: "Recompute ageing days and days to expiry for every lot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := service.NewInventoryService(storage.NewLotStore(db)).RefreshMetrics(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %d lots.\n", n)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a user; the only way to bootstrap the first manager",
	Example: `  inventoryd user create --username admin --password s3cret! --role manager`,
	Args:    cobra.NoArgs,
	RunE:    runUserCreate,
}

func init() {
	userCreateCmd.Flags().String("username", "", "login name (required)")
	userCreateCmd.Flags().String("password", "", "password (required)")
	userCreateCmd.Flags().String("email", "", "email address")
	userCreateCmd.Flags().String("role", string(domain.RoleEmployee), "manager or employee")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(migrateCmd, importCmd, refreshCmd, userCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("import")

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer file.Close()

	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := csvimport.Load(cmd.Context(), file, service.NewInventoryService(storage.NewLotStore(db)))
	if err != nil {
		return err
	}

	log.Info().Str("file", args[0]).Int("inserted", result.Inserted).Int("rows", result.TotalRows).Msg("import finished")
	fmt.Printf("Imported %d of %d rows.\n", result.Inserted, result.TotalRows)
	for _, skipped := range result.Skipped {
		fmt.Printf("  line %d: %s\n", skipped.Line, skipped.Error)
	}
	return nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	email, _ := cmd.Flags().GetString("email")
	role, _ := cmd.Flags().GetString("role")

	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewUserService(
		storage.NewUserStore(db),
		auth.NewBcryptHasher(auth.DefaultCost),
		auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTTL),
	)
	user, err := users.CreateUser(cmd.Context(), domain.NewUser{
		Username: username,
		Password: password,
		Email:    email,
		Role:     domain.Role(strings.ToLower(strings.TrimSpace(role))),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created %s %q (id %d).\n", user.Role, user.Username, user.ID)
	return nil
}
