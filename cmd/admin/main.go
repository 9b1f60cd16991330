// Command admin manages campus roles from the command line.
package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/config"
	"campusconnect/internal/database"
	"campusconnect/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func openDB() (*gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return database.Connect(cfg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "campus-admin",
		Short:         "Role management for Campus Connect",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "set-role <email> <student|faculty|admin>",
		Short: "Change the role of an existing profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			return setRole(cmd, db, args[0], args[1])
		},
	})

	var role string
	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles holding a role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			return listRole(cmd, db, role)
		},
	}
	list.Flags().StringVar(&role, "role", string(models.RoleAdmin), "role to list")
	root.AddCommand(list)

	return root
}

func setRole(cmd *cobra.Command, db *gorm.DB, email, roleName string) error {
	role := models.Role(strings.ToLower(strings.TrimSpace(roleName)))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", roleName)
	}

	var p models.Profile
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no profile with email %s", email)
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if p.Role == role {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (ID: %d) is already %s\n", p.Email, p.ID, role)
		return nil
	}
	if err := db.Model(&p).Update("role", role).Error; err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s (ID: %d) is now %s\n", p.Email, p.ID, role)
	return nil
}

func listRole(cmd *cobra.Command, db *gorm.DB, roleName string) error {
	var profiles []models.Profile
	if err := db.Where("role = ?", auth.Normalize(roleName)).Order("created_at").Find(&profiles).Error; err != nil {
		return fmt.Errorf("fetch profiles: %w", err)
	}
	if len(profiles) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s profiles found\n", roleName)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tJOINED")
	for _, p := range profiles {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Email, p.FullName, humanize.RelTime(p.CreatedAt, time.Now(), "ago", "from now"))
	}
	return w.Flush()
}
