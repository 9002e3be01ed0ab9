package command

// ParamType classifies a command parameter.
type ParamType string

// Parameter type constants.
const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
	TypeRange   ParamType = "range"
)

// AllParamTypes returns all valid parameter types.
func AllParamTypes() []ParamType {
	return []ParamType{TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeRange}
}

// Variant distinguishes the closed set of command definition shapes.
// Polymorphic per-class command config is modelled as tagged variants
// rather than duck-typed fields.
type Variant string

// Command definition variants.
const (
	// VariantStandard is a plain action invocation on the device driver.
	VariantStandard Variant = "standard"

	// VariantIR is an infrared-blaster command; the definition carries the
	// remote code to transmit and the action name is a label.
	VariantIR Variant = "ir"
)

// ParameterDefinition declares a single parameter of a command.
type ParameterDefinition struct {
	Name     string    `json:"name" yaml:"name"`
	Type     ParamType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`

	// Default is substituted when an optional parameter is absent.
	// If nil, the type-appropriate zero value is used.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Min and Max bound numeric and range parameters. Only meaningful for
	// integer, float and range types.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Definition describes one command a device understands.
// Owned by the device's static configuration; immutable after load.
type Definition struct {
	// Action is the handler key dispatched to the device driver.
	Action string `json:"action" yaml:"action"`

	// Variant selects the definition shape. Empty is treated as standard.
	Variant Variant `json:"variant,omitempty" yaml:"variant,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Group classifies the command for UI and role routing ("power", "volume").
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// Parameters is the ordered parameter schema. Empty means a no-arg command.
	Parameters []ParameterDefinition `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// IRCode is the remote code for VariantIR definitions.
	IRCode string `json:"ir_code,omitempty" yaml:"ir_code,omitempty"`

	// Effects optionally declares the state delta a successful invocation
	// produces. Values are literals, or "$name" references resolved from the
	// command's parameters at dispatch time. Drivers without their own state
	// reporting use this to keep the state store current.
	Effects map[string]any `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// ResolvedParams is a validated, normalised parameter map ready for dispatch.
// Values are string, int64, float64 or bool.
type ResolvedParams map[string]any

// DeepCopy returns an independent copy of the definition.
func (d *Definition) DeepCopy() *Definition {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Parameters != nil {
		cpy.Parameters = make([]ParameterDefinition, len(d.Parameters))
		copy(cpy.Parameters, d.Parameters)
	}

	if d.Effects != nil {
		cpy.Effects = make(map[string]any, len(d.Effects))
		for k, v := range d.Effects {
			cpy.Effects[k] = v
		}
	}

	return &cpy
}

// ParameterByName returns the declared parameter with the given name.
func (d *Definition) ParameterByName(name string) (ParameterDefinition, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterDefinition{}, false
}
