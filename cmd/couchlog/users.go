package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/couchlog/couchlog/internal/config"
	"github.com/couchlog/couchlog/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User management commands",
	}

	cmd.AddCommand(newUsersListCmd())
	cmd.AddCommand(newUsersAddCmd())
	cmd.AddCommand(newUsersLinkCmd())
	cmd.AddCommand(newUsersTrackingCmd("enable", true))
	cmd.AddCommand(newUsersTrackingCmd("disable", false))
	return cmd
}

func newUsersListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	return cmd
}

func runUsersList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	gormDB, err := openDBFromPath(configPath)
	if err != nil {
		return err
	}

	var users []models.User
	if err := gormDB.Order("id").Find(&users).Error; err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users yet. Add one with: couchlog users add <name>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tJELLYFIN\tTRACKING\t")
	for _, u := range users {
		linked := u.JellyfinUserID
		if linked == "" {
			linked = "-"
		}
		tracking := "on"
		if !u.TrackingEnabled {
			tracking = "off"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", u.ID, u.Name, linked, tracking)
	}
	return w.Flush()
}

func newUsersAddCmd() *cobra.Command {
	var (
		configPath     string
		email          string
		jellyfinUserID string
		admin          bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a user",
		Long:  "Creates a Couchlog user. Prompts for a password unless stdin is not a terminal.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersAdd(cmd, configPath, args[0], email, jellyfinUserID, admin)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&jellyfinUserID, "jellyfin-user", "", "Jellyfin user id to link")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	return cmd
}

func runUsersAdd(cmd *cobra.Command, configPath, name, email, jellyfinUserID string, admin bool) error {
	out := cmd.OutOrStdout()

	gormDB, err := openDBFromPath(configPath)
	if err != nil {
		return err
	}

	var count int64
	gormDB.Model(&models.User{}).Where("name = ?", name).Count(&count)
	if count > 0 {
		return fmt.Errorf("user %q already exists", name)
	}

	hash, err := promptPassword(out)
	if err != nil {
		return err
	}

	user := models.User{
		Name:            name,
		Email:           email,
		PasswordHash:    hash,
		JellyfinUserID:  jellyfinUserID,
		TrackingEnabled: true,
		IsAdmin:         admin,
	}
	if err := gormDB.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(out, "Created user %s (id %d)\n", user.Name, user.ID)
	if user.JellyfinUserID != "" {
		fmt.Fprintf(out, "Linked to Jellyfin user %s\n", user.JellyfinUserID)
	}
	return nil
}

// promptPassword reads a password from the terminal without echo. A
// non-terminal stdin skips the prompt and leaves the password unset.
func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(out, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return "", nil
	}

	fmt.Fprint(out, "Confirm:  ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(pw) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func newUsersLinkCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "link <user-id> <jellyfin-user-id>",
		Short: "Link a user to a Jellyfin account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersLink(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	return cmd
}

func runUsersLink(cmd *cobra.Command, configPath, idArg, jellyfinUserID string) error {
	out := cmd.OutOrStdout()

	gormDB, err := openDBFromPath(configPath)
	if err != nil {
		return err
	}

	user, err := lookupUser(gormDB, idArg)
	if err != nil {
		return err
	}

	user.JellyfinUserID = jellyfinUserID
	if err := gormDB.Save(user).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	fmt.Fprintf(out, "Linked %s to Jellyfin user %s\n", user.Name, jellyfinUserID)
	return nil
}

func newUsersTrackingCmd(verb string, enable bool) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   verb + " <user-id>",
		Short: capitalize(verb) + " playback tracking for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersTracking(cmd, configPath, args[0], enable)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	return cmd
}

func runUsersTracking(cmd *cobra.Command, configPath, idArg string, enable bool) error {
	out := cmd.OutOrStdout()

	gormDB, err := openDBFromPath(configPath)
	if err != nil {
		return err
	}

	user, err := lookupUser(gormDB, idArg)
	if err != nil {
		return err
	}

	user.TrackingEnabled = enable
	if err := gormDB.Save(user).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	state := "enabled"
	if !enable {
		state = "disabled"
	}
	fmt.Fprintf(out, "Tracking %s for %s\n", state, user.Name)
	return nil
}

// lookupUser finds a user by numeric id or by name.
func lookupUser(gormDB *gorm.DB, arg string) (*models.User, error) {
	var user models.User
	if id, err := strconv.ParseUint(arg, 10, 32); err == nil {
		if err := gormDB.First(&user, uint(id)).Error; err != nil {
			return nil, fmt.Errorf("user %s not found", arg)
		}
		return &user, nil
	}
	if err := gormDB.Where("name = ?", arg).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user %q not found", arg)
	}
	return &user, nil
}

func openDBFromPath(configPath string) (*gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openDB(cfg)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
