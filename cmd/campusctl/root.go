package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"campusconnect/pkg/client"

	"github.com/spf13/cobra"
)

type app struct {
	apiURL    string
	stateFile string
}

// savedSession is what `campusctl login` leaves on disk.
type savedSession struct {
	BaseURL      string    `json:"base_url"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Read notices, events and live updates from Campus Connect",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (overrides CAMPUS_API_URL)")
	root.PersistentFlags().StringVar(&a.stateFile, "state", defaultStateFile(), "where the login session is stored")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.noticesCmd(),
		a.eventsCmd(),
		a.dashboardCmd(),
		a.watchCmd(),
		a.loadtestCmd(),
	)
	return root
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "campusctl", "session.json")
}

// client builds an API client from the environment, the --api-url flag and
// any saved session, in increasing precedence.
func (a *app) client() (*client.Client, *savedSession, error) {
	cfg, err := client.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	saved, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	if saved != nil && saved.BaseURL != "" {
		cfg.BaseURL = saved.BaseURL
	}
	if a.apiURL != "" {
		cfg.BaseURL = a.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	c := client.New(cfg)
	if saved != nil {
		c.SetTokens(saved.AccessToken, saved.RefreshToken)
	}
	return c, saved, nil
}

// call runs fn with a saved-session client. An expired access token is
// refreshed once and the rotated pair saved before retrying.
func (a *app) call(fn func(c *client.Client) error) error {
	c, saved, err := a.client()
	if err != nil {
		return err
	}
	err = fn(c)
	if !client.IsStatus(err, http.StatusUnauthorized) || c.RefreshToken() == "" {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, rerr := c.Refresh(ctx); rerr != nil {
		return fmt.Errorf("session expired, log in again: %w", rerr)
	}
	email := ""
	if saved != nil {
		email = saved.Email
	}
	if perr := a.persist(c, email); perr != nil {
		return perr
	}
	return fn(c)
}

// session starts a client session from the saved login. Tokens rotated by
// the initial session check are saved before returning.
func (a *app) session(cmd *cobra.Command) (*client.Session, error) {
	c, saved, err := a.client()
	if err != nil {
		return nil, err
	}
	if c.Token() == "" {
		return nil, errors.New("not logged in; run `campusctl login` or set CAMPUS_API_KEY")
	}
	var creds client.Credentials
	if saved != nil {
		creds.Email = saved.Email
	}
	s, err := client.StartSession(cmd.Context(), c, creds)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			return nil, fmt.Errorf("session expired, log in again: %w", err)
		}
		return nil, err
	}
	if saved != nil && c.Token() != saved.AccessToken {
		if err := a.persist(c, saved.Email); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (a *app) load() (*savedSession, error) {
	raw, err := os.ReadFile(a.stateFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s savedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("read %s: %w", a.stateFile, err)
	}
	return &s, nil
}

func (a *app) save(s savedSession) error {
	if err := os.MkdirAll(filepath.Dir(a.stateFile), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.stateFile, raw, 0o600)
}

// persist stores rotated tokens so the next invocation keeps working.
func (a *app) persist(c *client.Client, email string) error {
	return a.save(savedSession{
		BaseURL:      c.BaseURL(),
		Email:        email,
		AccessToken:  c.Token(),
		RefreshToken: c.RefreshToken(),
		SavedAt:      time.Now(),
	})
}
