// Package plugins registers the application level module factories and
// lists what can be selected from the configuration.
package plugins

import (
	"github.com/kilianp07/volunteer/core/factory"
	coremetrics "github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/notify"
	"github.com/kilianp07/volunteer/infra/logger"
	_ "github.com/kilianp07/volunteer/infra/metrics"
	_ "github.com/kilianp07/volunteer/infra/mqtt"
)

func init() {
	_ = notify.Register("log", func(conf map[string]any) (notify.Notifier, error) {
		var c struct {
			Component string `json:"component"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Component == "" {
			c.Component = "announcements"
		}
		return notify.LogNotifier{Log: logger.New(c.Component)}, nil
	})
}

// Available returns the registered module types by kind.
func Available() map[string][]string {
	return map[string][]string{
		"notify":  notify.Types(),
		"metrics": coremetrics.SinkTypes(),
	}
}
