package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/audiocare/practice/internal/session"
)

// tokenClaims reads the registered claims without verifying the signature.
// The server does the verification; the client only wants the expiry.
func tokenClaims(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("token is not a valid JWT: %w", err)
	}
	return claims, nil
}

func loginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token issued by the auth provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, _ := cmd.Flags().GetString("token")
			baseURL, _ := cmd.Flags().GetString("base-url")
			if token == "" {
				return errors.New("--token is required")
			}

			claims, err := tokenClaims(token)
			if err != nil {
				return err
			}
			if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
				return fmt.Errorf("token expired at %s", claims.ExpiresAt.Format(time.RFC3339))
			}

			if baseURL != "" {
				if err := a.store.SetBaseURL(baseURL); err != nil {
					return err
				}
			}
			if err := a.store.SetToken(token); err != nil {
				return err
			}

			resume, err := a.store.TakeRedirectPath()
			if err != nil {
				return err
			}
			if resume == "" {
				resume = "/"
			}
			if err := a.store.Replace(resume); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Signed in as %s.\n", claims.Subject)
			if resume != "/" {
				fmt.Fprintf(a.out, "Resuming at %s\n", resume)
			}
			return nil
		},
	}
	cmd.Flags().String("token", "", "Bearer token")
	cmd.Flags().String("base-url", "", "API base URL to save alongside the token")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Logout(); err != nil {
				return err
			}
			if err := a.store.Replace(session.AuthPath); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the API endpoint, session and server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.store.Config()
			fmt.Fprintf(a.out, "API:      %s\n", cfg.BaseURL)
			fmt.Fprintf(a.out, "Location: %s\n", a.store.CurrentPath())

			switch claims, err := tokenClaims(cfg.Token); {
			case cfg.Token == "":
				fmt.Fprintln(a.out, "Session:  signed out")
			case err != nil:
				fmt.Fprintln(a.out, "Session:  unreadable token")
			case claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()):
				fmt.Fprintf(a.out, "Session:  %s, expired %s\n", claims.Subject, claims.ExpiresAt.Format(time.RFC3339))
			case claims.ExpiresAt != nil:
				fmt.Fprintf(a.out, "Session:  %s, expires %s\n", claims.Subject, claims.ExpiresAt.Format(time.RFC3339))
			default:
				fmt.Fprintf(a.out, "Session:  %s\n", claims.Subject)
			}

			health, err := a.client.Health(cmd.Context())
			if err != nil {
				fmt.Fprintf(a.out, "Server:   unreachable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(a.out, "Server:   %s\n", health.Status)
			return nil
		},
	}
}
