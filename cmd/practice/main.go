package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/audiocare/practice/internal/clientconfig"
	"github.com/audiocare/practice/internal/session"
	"github.com/audiocare/practice/pkg/apiclient"
)

func main() {
	// A .env next to the binary may carry PRACTICE_BASE_URL or PRACTICE_TOKEN.
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout, os.Stderr, nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every command once the config is loaded.
type app struct {
	store      *clientconfig.Store
	client     *apiclient.Client
	redirector *session.Redirector
	logger     zerolog.Logger
	out        io.Writer
}

// newRootCmd builds the command tree. httpClient may be nil.
func newRootCmd(out, errOut io.Writer, httpClient *http.Client) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "practice",
		Short:         "Command line client for the audiology practice API",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			verbose, _ := cmd.Flags().GetBool("verbose")
			return a.init(path, verbose, errOut, httpClient)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().String("config", "", "Path to the client config file (default $HOME/.practice/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log request failures at debug detail")

	rootCmd.AddCommand(loginCmd(a))
	rootCmd.AddCommand(logoutCmd(a))
	rootCmd.AddCommand(statusCmd(a))
	rootCmd.AddCommand(practicesCmd(a))
	rootCmd.AddCommand(audiologistsCmd(a))
	rootCmd.AddCommand(appointmentsCmd(a))

	return rootCmd
}

func (a *app) init(path string, verbose bool, errOut io.Writer, httpClient *http.Client) error {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: errOut, NoColor: true}).
		Level(level).With().Timestamp().Logger()

	store, err := clientconfig.Open(path)
	if err != nil {
		return err
	}
	a.store = store

	cfg := store.Config()
	opts := []apiclient.Option{
		apiclient.WithToken(cfg.Token),
		apiclient.WithLogger(a.logger),
	}
	if httpClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(httpClient))
	}
	a.client = apiclient.New(cfg.BaseURL, opts...)

	a.redirector, err = session.NewRedirector(store, store.SetRedirectPath)
	return err
}

// visit records path as the current location and runs fn. When fn fails
// because the session is over, the user is sent to the sign-in path and the
// visited path is kept for the next login.
func (a *app) visit(cmd *cobra.Command, path string, fn func(ctx context.Context) error) error {
	if err := a.store.Replace(path); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}

	redirected, rerr := a.redirector.HandleError(err)
	if rerr != nil {
		a.logger.Error().Err(rerr).Msg("could not save the sign-in redirect")
	}
	if redirected {
		fmt.Fprintln(a.out, "Your session has ended. Sign in again with: practice login --token <token>")
	}
	return err
}
