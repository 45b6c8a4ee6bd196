package connectors

// Registry is the static catalog of jurisdiction connectors, keyed by the
// uppercased STATE-COUNTY string. Read-only after construction.
type Registry struct {
	connectors map[string]ConnectorConfig
	order      []string
}

func NewRegistry(configs ...ConnectorConfig) *Registry {
	r := &Registry{connectors: map[string]ConnectorConfig{}}
	for _, config := range configs {
		key := config.Key.String()
		if _, seen := r.connectors[key]; !seen {
			r.order = append(r.order, key)
		}
		r.connectors[key] = config
	}
	return r
}

func (r *Registry) Get(key ConnectorKey) (ConnectorConfig, bool) {
	config, ok := r.connectors[key.String()]
	return config, ok
}

// List returns connectors in registration order, which fixes the processing
// order of a cycle.
func (r *Registry) List() []ConnectorConfig {
	out := make([]ConnectorConfig, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.connectors[key])
	}
	return out
}
