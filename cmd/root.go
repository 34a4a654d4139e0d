package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/km-arc/go-beans/framework/app"
	"github.com/km-arc/go-beans/framework/config"
)

var version = "dev"

// options holds what the persistent flags resolve to for one command tree.
type options struct {
	v        *viper.Viper
	cfgFile  string
	envFiles []string
	demo     bool
}

// NewRootCommand builds the command tree. Each call owns its own viper
// instance, so tests can build trees side by side.
func NewRootCommand() *cobra.Command {
	o := &options{v: viper.New()}

	root := &cobra.Command{
		Use:           "beans",
		Short:         "An IoC container application host",
		Long:          `beans boots a container of bean definitions behind an HTTP server and can print the container's state.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.cfgFile != "" {
				o.v.SetConfigFile(o.cfgFile)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&o.cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.StringSliceVar(&o.envFiles, "env-file", nil, "dotenv files to load (default: .env)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&o.demo, "demo", true, "register the demo beans and routes")
	_ = o.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	root.AddCommand(newServeCommand(o), newInspectCommand(o))
	return root
}

// load builds the application from flags, environment and config file.
func (o *options) load() (*app.Application, error) {
	cfg, err := config.LoadWith(o.v, o.envFiles...)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if o.demo {
		if err := a.Register(&DemoProvider{}); err != nil {
			return nil, fmt.Errorf("register demo: %w", err)
		}
	}
	return a, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) { version = v }

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
