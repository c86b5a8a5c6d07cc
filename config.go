package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "BLINDBOARD"

type Config struct {
	archive      string
	bind         string
	corsOrigin   string
	maxMessage   int64
	otelEndpoint string
	port         int
	prefix       string
	profile      bool
	quietJoin    bool
	tlsCert      string
	tlsKey       string
	verbose      bool
	version      bool
	wordLimit    int
	wordWindow   time.Duration

	// shared by the terminal subcommands
	server        string
	questionsFile string

	log zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxMessage < 1 {
		return fmt.Errorf("invalid max message size (must be positive): %d", c.maxMessage)
	}
	if c.wordLimit < 0 {
		return fmt.Errorf("invalid word limit (must not be negative): %d", c.wordLimit)
	}
	if c.wordLimit > 0 && c.wordWindow <= 0 {
		return fmt.Errorf("invalid word window (must be positive when --word-limit is set): %s", c.wordWindow)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// bindEnv lets every flag in fs be set from BLINDBOARD_<FLAG>. The port also
// honours a bare PORT, as most hosting platforms set one.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if f.Name == "port" {
			_ = v.BindEnv(f.Name, envPrefix+"_PORT", "PORT")
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "blindboard",
		Short:         "A live word cloud for presentations: ask a question, collect one-word answers.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.log = newLogger(cmd.ErrOrStderr(), cfg.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalize)

	fs.StringVar(&cfg.archive, "archive", "", "path to sqlite archive of questions and words, disabled when empty (env: BLINDBOARD_ARCHIVE)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BLINDBOARD_BIND)")
	fs.StringVar(&cfg.corsOrigin, "cors-origin", "*", "value of the Access-Control-Allow-Origin header (env: BLINDBOARD_CORS_ORIGIN)")
	fs.Int64Var(&cfg.maxMessage, "max-message", 4096, "largest websocket frame accepted, in bytes (env: BLINDBOARD_MAX_MESSAGE)")
	fs.StringVar(&cfg.otelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces, disabled when empty (env: BLINDBOARD_OTEL_ENDPOINT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BLINDBOARD_PORT or PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BLINDBOARD_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BLINDBOARD_PROFILE)")
	fs.BoolVar(&cfg.quietJoin, "quiet-join", false, "send the current question only to joining clients instead of resetting everyone (env: BLINDBOARD_QUIET_JOIN)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate, reloaded on change (env: BLINDBOARD_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile, reloaded on change (env: BLINDBOARD_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BLINDBOARD_VERSION)")
	fs.IntVar(&cfg.wordLimit, "word-limit", 0, "max words accepted per client address per window, 0 to disable (env: BLINDBOARD_WORD_LIMIT)")
	fs.DurationVar(&cfg.wordWindow, "word-window", time.Minute, "window for --word-limit (env: BLINDBOARD_WORD_WINDOW)")

	pfs := cmd.PersistentFlags()
	pfs.SetNormalizeFunc(normalize)

	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BLINDBOARD_VERBOSE)")

	bindEnv(v, fs)
	bindEnv(v, pfs)

	cmd.AddCommand(
		newDisplayCmd(cfg),
		newRespondCmd(cfg),
		newAskCmd(cfg),
		newSendCmd(cfg),
		newQuestionsCmd(cfg),
		newArchiveCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("blindboard v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
