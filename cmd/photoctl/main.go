// Command photoctl is a terminal client for the photoshare API.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"photoshare/internal/client"
	"photoshare/internal/feed"
)

type app struct {
	apiURL    string
	tokenFile string

	api     *client.API
	session *client.Session
	feed    *client.Feed
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "photoctl:", err)
		os.Exit(1)
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "photoshare", "token")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "photoctl",
		Short:         "Share photos from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.api = client.NewAPI(a.apiURL, nil)
			a.session = client.NewSession(a.api, client.FileTokenStore{Path: a.tokenFile})
			a.feed = client.NewFeed(a.api)
			return a.session.Restore(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("PHOTOSHARE_API", "http://localhost:8080/api"), "API base URL")
	root.PersistentFlags().StringVar(&a.tokenFile, "token-file", defaultTokenFile(), "where the bearer token is kept")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.feedCmd(),
		a.postCmd(),
		a.likeCmd(),
		a.commentCmd(),
		a.rmCmd(),
		a.uncommentCmd(),
	)
	return root
}

func (a *app) requireLogin() error {
	if a.session.State() != client.Authenticated {
		return fmt.Errorf("not logged in; run photoctl login")
	}
	return nil
}

func (a *app) registerCmd() *cobra.Command {
	var in client.RegisterInput
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username != "" {
				in.Username = &username
			}
			in.PasswordConfirmation = in.Password
			if err := a.session.Register(cmd.Context(), in); err != nil {
				return describe(err)
			}
			cmd.Printf("Welcome, %s.\n", a.session.User().Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&username, "username", "", "optional handle")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Login(cmd.Context(), email, password); err != nil {
				return describe(err)
			}
			cmd.Printf("Logged in as %s.\n", a.session.User().Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke this device's token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.session.State() != client.Authenticated {
				cmd.Println("Not logged in.")
				return nil
			}
			if err := a.session.Logout(cmd.Context()); err != nil {
				return describe(err)
			}
			cmd.Println("Logged out.")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			u := a.session.User()
			cmd.Printf("%s <%s> (%d posts)\n", u.Name, u.Email, u.PostsCount)
			return nil
		},
	}
}

func (a *app) feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "List the latest posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.feed.Refresh(cmd.Context()); err != nil {
				return describe(err)
			}
			posts := a.feed.Posts()
			if len(posts) == 0 {
				cmd.Println("No posts yet.")
				return nil
			}
			for _, p := range posts {
				printPost(cmd, p)
			}
			return nil
		},
	}
}

func printPost(cmd *cobra.Command, p feed.PostView) {
	heart := " "
	if p.IsLiked {
		heart = "♥"
	}
	caption := ""
	if p.Caption != nil {
		caption = *p.Caption
	}
	cmd.Printf("#%d %s %s · %s\n", p.ID, p.User.Name, caption, p.CreatedAt)
	cmd.Printf("   %s %d likes, %d comments  %s\n", heart, p.LikesCount, p.CommentsCount, p.ImageURL)
	for _, c := range p.Comments {
		cmd.Printf("     %s: %s\n", c.User.Name, c.Content)
	}
}

func (a *app) postCmd() *cobra.Command {
	var caption string
	cmd := &cobra.Command{
		Use:   "post IMAGE",
		Short: "Upload an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			p, err := a.feed.CreatePost(cmd.Context(), caption, filepath.Base(args[0]), f)
			if err != nil {
				return describe(err)
			}
			cmd.Printf("Posted #%d %s\n", p.ID, p.ImageURL)
			return nil
		},
	}
	cmd.Flags().StringVarP(&caption, "caption", "c", "", "caption")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (a *app) likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like POST_ID",
		Short: "Like or unlike a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := a.feed.ToggleLike(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			verb := "Unliked"
			if st.IsLiked {
				verb = "Liked"
			}
			cmd.Printf("%s #%d (%d likes)\n", verb, id, st.LikesCount)
			return nil
		},
	}
}

func (a *app) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment POST_ID TEXT...",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.feed.AddComment(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return describe(err)
			}
			cmd.Printf("Comment #%d added.\n", c.ID)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm POST_ID",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.feed.DeletePost(cmd.Context(), id); err != nil {
				return describe(err)
			}
			cmd.Printf("Deleted #%d.\n", id)
			return nil
		},
	}
}

func (a *app) uncommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uncomment COMMENT_ID",
		Short: "Delete one of your comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.api.DeleteComment(cmd.Context(), id); err != nil {
				return describe(err)
			}
			cmd.Printf("Deleted comment #%d.\n", id)
			return nil
		},
	}
}

// describe flattens field errors into one line for the terminal.
func describe(err error) error {
	apiErr, ok := err.(*client.APIError)
	if !ok || len(apiErr.Fields) == 0 {
		return err
	}
	fields := make([]string, 0, len(apiErr.Fields))
	for f := range apiErr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var parts []string
	for _, f := range fields {
		parts = append(parts, apiErr.Fields[f]...)
	}
	return fmt.Errorf("%s", strings.Join(parts, " "))
}
