// Package factory provides a small generic registry used to instantiate
// pluggable modules from configuration. A module is named by a type string and
// configured by a map of raw settings; factories decode the settings into
// typed structs and return the concrete implementation. Metrics sinks and
// event sources are both built through this registry.
//
// Example usage:
//
//	reg := factory.NewRegistry[metrics.Sink]()
//	reg.Register("prometheus", func(conf map[string]any) (metrics.Sink, error) {
//	    var c struct{ Port int `json:"port"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return prom.NewSink(c.Port)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "prometheus", Conf: map[string]any{"port": 9090}})
package factory
