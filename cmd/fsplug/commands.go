package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wippyai/fsplugin/filesystem"
	"github.com/wippyai/fsplugin/host"
)

// loadConfig assembles the plugin configuration from the optional
// config file plus --set overrides.
func loadConfig() (filesystem.Config, error) {
	v := viper.New()
	if flags.configPath != "" {
		v.SetConfigFile(flags.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg := filesystem.Config(v.AllSettings())
	if cfg == nil {
		cfg = filesystem.Config{}
	}
	for _, kv := range flags.sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("bad --set %q, want key=value", kv)
		}
		cfg[key] = value
	}
	return cfg, nil
}

// withPlugin loads, validates, and initializes the plugin, runs fn, and
// tears everything down.
func withPlugin(ctx context.Context, fn func(context.Context, *host.Plugin) error) error {
	wasmBytes, err := os.ReadFile(flags.pluginPath)
	if err != nil {
		return fmt.Errorf("read plugin: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []host.Option{host.WithName(flags.pluginPath)}
	if flags.hostRoot != "" {
		opts = append(opts, host.WithHostFS(flags.hostRoot))
	}
	if flags.httpAccess {
		opts = append(opts, host.WithHTTP(http.DefaultClient))
	}

	engine := host.NewEngine()
	defer engine.Close(ctx)
	p, err := engine.Load(ctx, wasmBytes, opts...)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	if err := p.Validate(ctx, cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := p.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer p.Shutdown(ctx)

	return fn(ctx, p)
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the plugin's name, documentation, and parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPlugin(cmd.Context(), func(ctx context.Context, p *host.Plugin) error {
				name, err := p.Name(ctx)
				if err != nil {
					return err
				}
				readme, err := p.Readme(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("name: %s\n\n%s\n", name, readme)
				return nil
			})
		},
	}
}

func paramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List the plugin's configuration parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPlugin(cmd.Context(), func(ctx context.Context, p *host.Plugin) error {
				params, err := p.ConfigParams(ctx)
				if err != nil {
					return err
				}
				if len(params) == 0 {
					fmt.Println("no configuration parameters")
					return nil
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTYPE\tREQUIRED\tDEFAULT\tDESCRIPTION")
				for _, param := range params {
					fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n",
						param.Name, param.Type, param.Required, param.Default, param.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls PATH",
		Short: "List a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlugin(cmd.Context(), func(ctx context.Context, p *host.Plugin) error {
				infos, err := p.Readdir(ctx, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, fi := range infos {
					kind := "-"
					if fi.IsDir {
						kind = "d"
					}
					fmt.Fprintf(tw, "%s%04o\t%d\t%s\n", kind, fi.Mode, fi.Size, fi.Name)
				}
				return tw.Flush()
			})
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlugin(cmd.Context(), func(ctx context.Context, p *host.Plugin) error {
				data, err := p.Read(ctx, args[0], 0, -1)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	}
}

func statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat PATH",
		Short: "Show file information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlugin(cmd.Context(), func(ctx context.Context, p *host.Plugin) error {
				fi, err := p.Stat(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("name:    %s\n", fi.Name)
				fmt.Printf("size:    %d\n", fi.Size)
				fmt.Printf("mode:    %04o\n", fi.Mode)
				fmt.Printf("modtime: %s\n", fi.ModTime)
				fmt.Printf("dir:     %v\n", fi.IsDir)
				if fi.Meta != nil {
					fmt.Printf("meta:    %s/%s\n", fi.Meta.Name, fi.Meta.Type)
				}
				return nil
			})
		},
	}
}

func writeCmd() *cobra.Command {
	var appendFlag bool
	cmd := &cobra.Command{
		Use:   "write PATH [FILE]",
		Short: "Write a file from FILE or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 2 && args[1] != "-" {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}
			return withPlugin(cmd.Context(), func(ctx context.Context, p *host.Plugin) error {
				wflags := filesystem.WriteCreate | filesystem.WriteTruncate
				offset := int64(0)
				if appendFlag {
					wflags = filesystem.WriteCreate | filesystem.WriteAppend
					offset = -1
				}
				n, err := p.Write(ctx, args[0], data, offset, wflags)
				if err != nil {
					return err
				}
				fmt.Printf("wrote %d bytes to %s\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&appendFlag, "append", "a", false, "append instead of truncating")
	return cmd
}
