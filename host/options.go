package host

import (
	"net/http"

	"go.uber.org/zap"
)

// Options configure one plugin instance at load time.
type Options struct {
	log        *zap.Logger
	httpClient *http.Client
	name       string
	hostRoot   string
}

// Option mutates load options.
type Option func(*Options)

// WithName sets the instance name used in logs.
func WithName(name string) Option {
	return func(o *Options) { o.name = name }
}

// WithLogger sets the instance logger; defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.log = l }
}

// WithHostFS enables the host filesystem passthrough imports, scoped to
// dir. Without it every host_fs call fails permission-denied.
func WithHostFS(dir string) Option {
	return func(o *Options) { o.hostRoot = dir }
}

// WithHTTP enables the outbound HTTP import using client. Without it
// every host_http_request fails permission-denied.
func WithHTTP(client *http.Client) Option {
	return func(o *Options) {
		if client == nil {
			client = http.DefaultClient
		}
		o.httpClient = client
	}
}

func buildOptions(opts []Option) *Options {
	o := &Options{name: "plugin", log: Logger()}
	for _, fn := range opts {
		fn(o)
	}
	return o
}
