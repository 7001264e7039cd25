package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ecosense/internal/chatclient"
	"ecosense/internal/tui"
)

var (
	serverURL string
	token     string
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "ecosense-chat",
	Short: "Terminal chat widget for the EcoSense assistant",
	Long: `ecosense-chat talks to an EcoSense backend and renders the conversation
in the terminal.

Credentials are optional against a development server: without --token or
--session the backend falls back to its anonymous user when configured to
allow that.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(
			tui.New(newClient(), displayName()),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
		)
		_, err := p.Run()
		return err
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange a username and password for a session credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := newClient().Login(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s.\n\n", resp.User.Username)
		fmt.Printf("  export ECOSENSE_TOKEN=%s\n", resp.Token)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user the server resolves your credentials to",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := newClient().Me(ctx)
		if err != nil {
			return err
		}
		name := user.DisplayName
		if name == "" {
			name = user.Username
		}
		fmt.Printf("%s (user %d)\n", name, user.ID)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := newClient().ClearHistory(ctx); err != nil {
			return err
		}
		fmt.Println("Conversation cleared.")
		return nil
	},
}

func newClient() *chatclient.Client {
	client := chatclient.New(serverURL)
	client.Token = token
	client.SessionID = sessionID
	return client
}

// displayName is what the widget header shows for the current credential.
func displayName() string {
	name := token
	if name == "" {
		name = sessionID
	}
	if name == "" {
		return "anonymous"
	}
	if len(name) > 16 {
		return name[:16] + "…"
	}
	return name
}

func envOr(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ECOSENSE_SERVER", "http://localhost:8080"), "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("ECOSENSE_TOKEN"), "Bearer credential (the bare username in plaintext mode)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", os.Getenv("ECOSENSE_SESSION"), "Session cookie value")

	loginCmd.Flags().StringP("username", "u", "", "Username")
	loginCmd.Flags().StringP("password", "p", "", "Password")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
