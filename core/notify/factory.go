package notify

import "github.com/kilianp07/volunteer/core/factory"

var registry = factory.NewRegistry[Notifier]()

func init() {
	_ = Register("nop", func(map[string]any) (Notifier, error) { return Nop{}, nil })
}

// Register adds a notifier factory identified by name.
func Register(name string, f factory.Factory[Notifier]) error {
	return registry.Register(name, f)
}

// New creates a Notifier from cfg. An empty type yields Nop.
func New(cfg factory.ModuleConfig) (Notifier, error) {
	if cfg.Type == "" {
		return Nop{}, nil
	}
	return registry.Create(cfg)
}

// Types lists the registered notifier types.
func Types() []string { return registry.Names() }
