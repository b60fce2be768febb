// fsplug loads a filesystem plugin compiled to wasm and runs one
// operation against it: inspect its identity and parameters, list and
// read files, or write through the boundary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/fsplugin/host"
)

var flags struct {
	pluginPath string
	configPath string
	sets       []string
	hostRoot   string
	httpAccess bool
	verbose    bool
}

func main() {
	root := &cobra.Command{
		Use:           "fsplug",
		Short:         "Drive a wasm filesystem plugin from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.verbose {
				if l, err := zap.NewDevelopment(); err == nil {
					host.SetLogger(l)
				}
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.pluginPath, "plugin", "p", "", "path to the plugin .wasm binary")
	pf.StringVarP(&flags.configPath, "config", "c", "", "plugin configuration file (JSON/YAML/TOML)")
	pf.StringArrayVar(&flags.sets, "set", nil, "configuration override key=value (repeatable)")
	pf.StringVar(&flags.hostRoot, "host-root", "", "enable host filesystem passthrough rooted at this directory")
	pf.BoolVar(&flags.httpAccess, "http", false, "enable outbound HTTP for the plugin")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")
	_ = root.MarkPersistentFlagRequired("plugin")

	root.AddCommand(
		infoCmd(),
		paramsCmd(),
		lsCmd(),
		catCmd(),
		statCmd(),
		writeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fsplug:", err)
		os.Exit(1)
	}
}
