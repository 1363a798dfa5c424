package app

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
)

// ClientDescription is the describe view of one registered client.
type ClientDescription struct {
	Identity   string                 `yaml:"identity"`
	Target     string                 `yaml:"target"`
	BaseURL    string                 `yaml:"base_url"`
	Format     string                 `yaml:"format,omitempty"`
	Operations []OperationDescription `yaml:"operations"`
}

// OperationDescription is the describe view of one operation.
type OperationDescription struct {
	Name     string   `yaml:"name"`
	Route    string   `yaml:"route"`
	Bindings []string `yaml:"bindings,omitempty"`
	Result   string   `yaml:"result,omitempty"`
	Format   string   `yaml:"format,omitempty"`
}

// Describe lists every registered client in identity order.
func (a *Application) Describe() []ClientDescription {
	var out []ClientDescription
	a.registry.Each(func(inst *proxy.Instance) {
		target := inst.Target()
		desc := ClientDescription{
			Identity: inst.Identity(),
			Target:   target.ID,
			BaseURL:  target.BaseURL,
			Format:   target.Format,
		}
		for _, d := range inst.Descriptors() {
			desc.Operations = append(desc.Operations, describeOperation(d))
		}
		out = append(out, desc)
	})
	return out
}

// WriteDescription renders Describe as YAML.
func (a *Application) WriteDescription(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"clients": a.Describe()}); err != nil {
		return fmt.Errorf("encode description: %w", err)
	}
	return enc.Close()
}

func describeOperation(d contract.Descriptor) OperationDescription {
	op := OperationDescription{
		Name:   d.Name,
		Route:  d.String(),
		Format: d.Format,
	}
	for _, b := range d.Bindings {
		if b.Kind == contract.BindBody {
			op.Bindings = append(op.Bindings, fmt.Sprintf("body:%s", b.Type))
			continue
		}
		op.Bindings = append(op.Bindings, fmt.Sprintf("%s:%s", b.Kind, b.Name))
	}
	if d.HasResult() {
		op.Result = d.Result.String()
	}
	return op
}
