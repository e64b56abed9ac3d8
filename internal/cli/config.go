package cli

import (
	"context"
	"fmt"
	"os"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	"gopkg.in/yaml.v3"

	"github.com/basetier/stratum/internal/notify"
)

// Config is the optional YAML configuration file. Flags win over file
// values.
type Config struct {
	// DB is the path to the SQLite database.
	DB string `yaml:"db"`

	// Workspace is the default workspace id.
	Workspace string `yaml:"workspace"`

	// NotifyURL is a gocloud.dev pubsub topic URL (e.g. "mem://changes")
	// to publish committed mutations to. Empty disables notification.
	NotifyURL string `yaml:"notify_url"`
}

// loadConfigInto parses the config file (if any), fills unset flags
// from it, and attaches the parsed result to opts for command bodies.
func loadConfigInto(opts *RootOptions) error {
	if opts.ConfigPath == "" {
		return nil
	}

	data, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", opts.ConfigPath, err)
	}

	if opts.Database == "" {
		opts.Database = cfg.DB
	}
	if opts.Workspace == "" {
		opts.Workspace = cfg.Workspace
	}
	opts.config = &cfg
	return nil
}

// openTopicNotifier opens a pubsub topic by URL and wraps it as a
// Notifier. The returned shutdown func must be called when done.
func openTopicNotifier(url string) (notify.Notifier, func(), error) {
	ctx := context.Background()
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("open notify topic %s", url), err)
	}
	shutdown := func() { topic.Shutdown(context.Background()) }
	return notify.NewTopic(topic), shutdown, nil
}
