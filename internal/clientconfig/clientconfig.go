// Package clientconfig persists the CLI's connection settings and its
// navigation state between invocations.
package clientconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	defaultPath    = "/"

	keyBaseURL      = "base_url"
	keyToken        = "token"
	keyCurrentPath  = "current_path"
	keyRedirectPath = "redirect_path"
)

type Config struct {
	BaseURL      string `mapstructure:"base_url"`
	Token        string `mapstructure:"token"`
	CurrentPath  string `mapstructure:"current_path"`
	RedirectPath string `mapstructure:"redirect_path"`
}

// Store is a YAML file with PRACTICE_BASE_URL and PRACTICE_TOKEN taking
// precedence over what it holds. Only file values are written back.
type Store struct {
	path string
	file *viper.Viper
	env  *viper.Viper
}

// DefaultPath is $HOME/.practice/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".practice", "config.yaml"), nil
}

// Open loads path, or DefaultPath when path is empty. A missing file is not
// an error.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	file.SetDefault(keyBaseURL, DefaultBaseURL)
	file.SetDefault(keyCurrentPath, defaultPath)
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read client config %s: %w", path, err)
	}

	env := viper.New()
	env.SetEnvPrefix("PRACTICE")
	_ = env.BindEnv(keyBaseURL)
	_ = env.BindEnv(keyToken)

	return &Store{path: path, file: file, env: env}, nil
}

func (s *Store) Path() string { return s.path }

// Config returns the effective settings.
func (s *Store) Config() Config {
	var c Config
	_ = s.file.Unmarshal(&c)
	if v := s.env.GetString(keyBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := s.env.GetString(keyToken); v != "" {
		c.Token = v
	}
	return c
}

func (s *Store) SetBaseURL(u string) error {
	s.file.Set(keyBaseURL, u)
	return s.save()
}

func (s *Store) SetToken(token string) error {
	s.file.Set(keyToken, token)
	return s.save()
}

// Logout forgets the stored token. The redirect path is kept so the next
// login can resume.
func (s *Store) Logout() error {
	s.file.Set(keyToken, "")
	return s.save()
}

// SetRedirectPath records where to resume after the next login.
func (s *Store) SetRedirectPath(path string) error {
	s.file.Set(keyRedirectPath, path)
	return s.save()
}

// TakeRedirectPath returns the pending redirect path and clears it.
func (s *Store) TakeRedirectPath() (string, error) {
	p := s.file.GetString(keyRedirectPath)
	if p == "" {
		return "", nil
	}
	s.file.Set(keyRedirectPath, "")
	return p, s.save()
}

// CurrentPath is the last location the CLI navigated to.
func (s *Store) CurrentPath() string {
	return s.file.GetString(keyCurrentPath)
}

// Replace records path as the current location.
func (s *Store) Replace(path string) error {
	s.file.Set(keyCurrentPath, path)
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := s.file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write client config: %w", err)
	}
	// The file holds a bearer token.
	return os.Chmod(s.path, 0o600)
}
