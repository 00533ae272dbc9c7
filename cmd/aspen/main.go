// Command aspen inspects and formats configuration documents through the
// raw node tree used by go-aspen profiles.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-aspen/pkg/state"
	"github.com/goliatone/go-aspen/raw/yamlraw"
)

var version = "dev"

// cli carries what every subcommand needs. Flags are read through viper so
// ASPEN_VERBOSE, ASPEN_COLOR and ASPEN_INDENT work as well.
type cli struct {
	fs    afero.Fs
	store *state.FileStore
	v     *viper.Viper
	log   *zap.Logger
}

func main() {
	if err := newRootCommand(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	app := &cli{
		fs:    fs,
		store: state.NewFileStore(fs),
		v:     viper.New(),
		log:   zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "aspen",
		Short:         "Inspect and format aspen configuration documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = app.log.Sync()
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "log parse and write steps to stderr")
	root.PersistentFlags().String("color", "auto", "colorize output: auto, always or never")
	root.PersistentFlags().Int("indent", 2, "indentation used when serializing")

	root.AddCommand(newInspectCommand(app), newFormatCommand(app))
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.v.SetEnvPrefix("aspen")
	c.v.AutomaticEnv()

	switch mode := strings.ToLower(c.v.GetString("color")); mode {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid --color %q: want auto, always or never", mode)
	}
	if c.v.GetInt("indent") < 1 {
		return fmt.Errorf("invalid --indent %d: must be positive", c.v.GetInt("indent"))
	}

	if c.v.GetBool("verbose") {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		logger, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		c.log = logger.Named("aspen")
	}
	return nil
}

func (c *cli) adapter() *yamlraw.Adapter {
	return yamlraw.New(yamlraw.WithIndent(c.v.GetInt("indent")))
}

// colorEnabled resolves --color against the command's output stream.
func (c *cli) colorEnabled(cmd *cobra.Command) bool {
	switch strings.ToLower(c.v.GetString("color")) {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
