// This file implements the account commands: login, signup, logout, whoami.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	flagEmail    string
	flagPassword string
)

// loginCmd authenticates against the backend and stores the token.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	Long: `Authenticate with the backend and store the session token in
~/.docchat/credentials.json. The interactive chat and the one-shot
commands reuse the stored token until it expires or you log out.`,
	RunE: runLogin,
}

// signupCmd registers a new account.
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a new account",
	Long: `Create a new account on the backend. Signup does not log you in;
run 'docchat login' afterwards.`,
	RunE: runSignup,
}

// logoutCmd invalidates the server session and clears the stored token.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear the stored token",
	RunE:  runLogout,
}

// whoamiCmd shows the logged-in account.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "Account email (prompted if omitted)")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "Account password (prompted if omitted)")
	signupCmd.Flags().StringVar(&flagEmail, "email", "", "Account email (prompted if omitted)")
	signupCmd.Flags().StringVar(&flagPassword, "password", "", "Account password (prompted if omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	email, err := promptValue("Email", flagEmail)
	if err != nil {
		return err
	}
	password, err := promptSecret("Password", flagPassword)
	if err != nil {
		return err
	}

	if err := a.gate.Login(cmd.Context(), email, password); err != nil {
		logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("login failed: %w", err)
	}

	user := a.gate.CurrentUser()
	fmt.Printf("✓ Logged in as %s (%s)\n", user.FullName, user.Email)
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	firstName, err := promptValue("First name", "")
	if err != nil {
		return err
	}
	lastName, err := promptValue("Last name", "")
	if err != nil {
		return err
	}
	email, err := promptValue("Email", flagEmail)
	if err != nil {
		return err
	}
	password, err := promptSecret("Password", flagPassword)
	if err != nil {
		return err
	}

	if err := a.gate.Signup(cmd.Context(), email, password, firstName, lastName); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}

	fmt.Println("✓ Account created. Run 'docchat login' to sign in.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	a.gate.Restore(cmd.Context())
	if !a.gate.Authenticated() {
		fmt.Println("Not logged in.")
		return nil
	}

	a.gate.Logout(cmd.Context())
	fmt.Println("✓ Logged out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	a.gate.Restore(cmd.Context())
	if !a.gate.Authenticated() {
		fmt.Println("Not logged in. Run 'docchat login' first.")
		return nil
	}

	user := a.gate.CurrentUser()
	fmt.Printf("%s <%s>\n", user.FullName, user.Email)
	return nil
}

// promptValue returns the preset if given, otherwise reads a line from stdin.
func promptValue(label, preset string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(label, preset string) (string, error) {
	if preset != "" {
		return preset, nil
	}
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
		}
		return string(raw), nil
	}
	return promptValue(label, "")
}
