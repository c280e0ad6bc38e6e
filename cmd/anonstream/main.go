package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"anonstream/internal/app"
	"anonstream/internal/config"
	"anonstream/internal/stream"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "add", "publish").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// shortRef truncates an id for display. Imported records can carry ids of
// any length, so never slice blindly.
func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// defaultExportName returns the date-stamped filename used when export is
// called without an explicit output path.
func defaultExportName(now time.Time) string {
	return "anonstream-" + now.Format("2006-01-02") + ".json"
}

// readPassphrase prompts for a passphrase without echoing.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "anonstream",
	Short: "Anonymous local-first media sharing",
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

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Vault:     %s\n", cfg.Vault.Type)
		fmt.Printf("Staging:   %s\n", cfg.Staging.Type)
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile [USER_ID]",
	Short: "Show the local identity, or another user's profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("profile")
		if err != nil {
			return err
		}
		defer a.Close()

		userID := ""
		if len(args) == 1 {
			userID = args[0]
		}

		user, items, err := a.Profile(userID)
		if err != nil {
			return err
		}

		fmt.Printf("ID:     %s\n", user.ID)
		fmt.Printf("Name:   %s\n", user.DisplayName)
		fmt.Printf("Avatar: %s\n", user.AvatarColor)
		if len(items) > 0 {
			fmt.Printf("\nUploads (%d):\n", len(items))
			for _, item := range items {
				fmt.Printf("  %s  %-11s  %s\n", item.ID, item.Type, item.Title)
			}
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the local identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("whoami")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.Whoami()
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", user.DisplayName, user.ID)
		return nil
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update display name or avatar color",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		color, _ := cmd.Flags().GetString("color")
		if name == "" && color == "" {
			return fmt.Errorf("nothing to update; pass --name or --color")
		}

		a, err := newApp("profile-update")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.UpdateProfile(name, color)
		if err != nil {
			return err
		}

		fmt.Printf("Profile updated: %s (%s)\n", user.DisplayName, user.AvatarColor)
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Stage files as drafts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		a, err := newApp("add")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.AddFiles(args, title, description, tags)
		if err != nil {
			return fmt.Errorf("staging: %w", err)
		}

		fmt.Printf("Staged %d draft(s)\n", count)
		return nil
	},
}

// drafts command
var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List staged drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("drafts")
		if err != nil {
			return err
		}
		defer a.Close()

		drafts, err := a.Drafts()
		if err != nil {
			return err
		}

		if len(drafts) == 0 {
			fmt.Println("No drafts staged.")
			return nil
		}

		for _, d := range drafts {
			fmt.Printf("%s  %-12s  %s\n", shortRef(d.ID), d.Type, d.Title)
		}
		return nil
	},
}

// publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish all staged drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("publish")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.Publish()
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}

		fmt.Printf("Published %d item(s)\n", count)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Browse the feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		search, _ := cmd.Flags().GetString("search")
		sortOrder, _ := cmd.Flags().GetString("sort")

		a, err := newApp("list")
		if err != nil {
			return err
		}
		defer a.Close()

		items, state, err := a.List(search, category, sortOrder)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No content found.")
			return nil
		}

		for _, item := range items {
			marks := ""
			if set, ok := state[item.ID]; ok {
				if set["like"] {
					marks += "♥"
				}
				if set["bookmark"] {
					marks += "★"
				}
			}
			fmt.Printf("%s  %-12s  %-30s  %s  likes:%d views:%d comments:%d  %s\n",
				shortRef(item.ID),
				item.Type,
				item.Title,
				item.Date.Format("2006-01-02"),
				item.Metrics.Likes,
				item.Metrics.Views,
				item.Metrics.Comments,
				marks,
			)
		}
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View an item and its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("show")
		if err != nil {
			return err
		}
		defer a.Close()

		item, threads, err := a.Show(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", item.Title)
		fmt.Printf("by %s on %s\n", item.AuthorName, item.Date.Format("2006-01-02 15:04"))
		fmt.Printf("type: %s  likes: %d  views: %d  comments: %d\n",
			item.Type, item.Metrics.Likes, item.Metrics.Views, item.Metrics.Comments)
		if len(item.Tags) > 0 {
			fmt.Printf("tags: %s\n", strings.Join(item.Tags, ", "))
		}
		if item.Description != "" {
			fmt.Printf("\n%s\n", item.Description)
		}
		if item.Content != "" {
			fmt.Printf("\n%s\n", item.Content)
		}

		if len(threads) > 0 {
			fmt.Println("\nComments:")
			printThreads(threads, 0)
		}
		return nil
	},
}

func printThreads(threads []*stream.Thread, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, t := range threads {
		c := t.Comment
		fmt.Printf("%s%s (%s): %s\n",
			indent, c.AuthorName, c.Timestamp.Format("2006-01-02 15:04"), c.Content)
		printThreads(t.Replies, depth+1)
	}
}

// like command
var likeCmd = &cobra.Command{
	Use:   "like ID",
	Short: "Toggle a like on an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("like")
		if err != nil {
			return err
		}
		defer a.Close()

		active, err := a.Like(args[0])
		if err != nil {
			return err
		}

		if active {
			fmt.Println("Liked.")
		} else {
			fmt.Println("Like removed.")
		}
		return nil
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save ID",
	Short: "Toggle a bookmark on an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("save")
		if err != nil {
			return err
		}
		defer a.Close()

		active, err := a.Save(args[0])
		if err != nil {
			return err
		}

		if active {
			fmt.Println("Saved to favorites.")
		} else {
			fmt.Println("Removed from favorites.")
		}
		return nil
	},
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment ID TEXT",
	Short: "Comment on an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		replyTo, _ := cmd.Flags().GetString("reply-to")

		a, err := newApp("comment")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.CommentOn(args[0], args[1], replyTo)
		if err != nil {
			return err
		}

		fmt.Printf("Comment added: %s\n", c.ID)
		return nil
	},
}

// users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List known users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("users")
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Users()
		if err != nil {
			return err
		}

		if len(users) == 0 {
			fmt.Println("No users yet.")
			return nil
		}

		for _, u := range users {
			fmt.Printf("%s  %-20s  %s\n", shortRef(u.ID), u.DisplayName, u.AvatarColor)
		}
		return nil
	},
}

// media command
var mediaCmd = &cobra.Command{
	Use:   "media ID",
	Short: "Fetch an item's media payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			return fmt.Errorf("an output path is required; pass --output")
		}

		a, err := newApp("media")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()

		if err := a.FetchMedia(args[0], f); err != nil {
			return err
		}

		fmt.Printf("Media written to %s\n", out)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all data to a snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		if out == "" {
			out = defaultExportName(time.Now())
		}

		a, err := newApp("export")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ExportTo(out, encrypt); err != nil {
			return err
		}

		fmt.Printf("Exported to %s\n", out)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Merge a snapshot file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("import")
		if err != nil {
			return err
		}
		defer a.Close()

		added, err := a.ImportFrom(args[0], "")
		if err != nil && strings.Contains(err.Error(), "passphrase is required") {
			pass, perr := readPassphrase("Passphrase: ")
			if perr != nil {
				return perr
			}
			added, err = a.ImportFrom(args[0], pass)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d record(s)\n", added)
		return nil
	},
}

// reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all data and media",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("This deletes ALL content, comments, interactions, and media.\nType 'reset' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		if strings.TrimSpace(line) != "reset" {
			fmt.Println("Aborted.")
			return nil
		}

		a, err := newApp("reset")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Reset(); err != nil {
			return err
		}

		fmt.Println("All data cleared.")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage export encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the export key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if pass == "" {
			return fmt.Errorf("passphrase must not be empty")
		}

		a, err := newApp("keys-init")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupKeys(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// profile subcommands
	profileCmd.AddCommand(profileUpdateCmd)
	profileUpdateCmd.Flags().String("name", "", "New display name")
	profileUpdateCmd.Flags().String("color", "", "New avatar color (e.g. \"hsl(120, 70%, 50%)\")")

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("title", "", "Draft title (single file only)")
	addCmd.Flags().String("description", "", "Draft description")
	addCmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	rootCmd.AddCommand(draftsCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("category", "c", "All", "Category: All, Videos, Photos, Text, Favorites")
	listCmd.Flags().StringP("search", "s", "", "Search titles and tags")
	listCmd.Flags().String("sort", "newest", "Sort order: newest, oldest, popular")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(commentCmd)
	commentCmd.Flags().String("reply-to", "", "Parent comment id")
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(mediaCmd)
	mediaCmd.Flags().StringP("output", "o", "", "Output file path")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Output file path (default: anonstream-<date>.json)")
	exportCmd.Flags().Bool("encrypt", false, "Encrypt the snapshot with the configured key")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(keysCmd)
}
