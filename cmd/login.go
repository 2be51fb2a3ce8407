package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukman83/adscout/internal/browser"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the marketplace in a visible browser and save the session",
	Long: "Opens the browser profile headful. After you log in manually the " +
		"session cookies are saved so later headless runs can reuse them.",
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := browserOptions(newRobotsChecker())
	opts.Headless = false

	sess, err := browser.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.EnsureSession(ctx)
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, "Already logged in; session cookies refreshed.")
		return sess.SaveCookies()
	case !errors.Is(err, browser.ErrNeedsLogin):
		return err
	}

	if err := sess.Login(ctx, promptEnter); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged in. Session saved to %s\n", cfg.CookiesFile())
	return nil
}
