/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	storeFile   = "file"
	storeMemory = "memory"
	storeSQLite = "sqlite"
)

type Config struct {
	bind           string
	feedbackDelay  time.Duration
	finishDelay    time.Duration
	images         string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	store          string
	storePath      string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	watch          bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.images == "" {
		return errors.New("--images must not be empty")
	}
	if c.feedbackDelay < 0 || c.finishDelay < 0 {
		return errors.New("--feedback-delay and --finish-delay must not be negative")
	}
	switch c.store {
	case storeFile, storeMemory, storeSQLite:
	default:
		return fmt.Errorf("invalid store %q (must be one of: %s, %s, %s)", c.store, storeFile, storeMemory, storeSQLite)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// statePath returns where the selected store keeps its data.
func (c *Config) statePath() string {
	if c.storePath != "" {
		return c.storePath
	}
	switch c.store {
	case storeSQLite:
		return "picturebox.db"
	case storeFile:
		return "state"
	default:
		return ""
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PICTUREBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "picturebox",
		Short:         "A two-team picture guessing party game, served as a single webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PICTUREBOX_BIND)")
	fs.DurationVar(&cfg.feedbackDelay, "feedback-delay", time.Second, "time a guess result is shown before it is scored (env: PICTUREBOX_FEEDBACK_DELAY)")
	fs.DurationVar(&cfg.finishDelay, "finish-delay", 1500*time.Millisecond, "time between the last card being solved and the winner screen (env: PICTUREBOX_FINISH_DELAY)")
	fs.StringVarP(&cfg.images, "images", "i", "images", "directory of images, one card per file (env: PICTUREBOX_IMAGES)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PICTUREBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PICTUREBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PICTUREBOX_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle games are unloaded from memory (env: PICTUREBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.store, "store", storeFile, "where game state is kept: file, sqlite or memory (env: PICTUREBOX_STORE)")
	fs.StringVar(&cfg.storePath, "store-path", "", "state directory (file) or database path (sqlite); defaults to ./state or ./picturebox.db (env: PICTUREBOX_STORE_PATH)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PICTUREBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PICTUREBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PICTUREBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PICTUREBOX_VERSION)")
	fs.BoolVar(&cfg.watch, "watch", true, "start fresh games when the image directory changes (env: PICTUREBOX_WATCH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("picturebox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
