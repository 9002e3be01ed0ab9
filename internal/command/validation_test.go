package command

import (
	"errors"
	"testing"
)

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name    string
		def     *Definition
		wantErr bool
	}{
		{
			name: "valid standard command",
			def: &Definition{
				Action: "set_volume",
				Parameters: []ParameterDefinition{
					{Name: "level", Type: TypeRange, Required: true, Min: floatPtr(0), Max: floatPtr(100)},
				},
			},
			wantErr: false,
		},
		{
			name: "valid ir command",
			def: &Definition{
				Action:  "power_on",
				Variant: VariantIR,
				IRCode:  "0x20DF10EF",
			},
			wantErr: false,
		},
		{
			name:    "empty action",
			def:     &Definition{},
			wantErr: true,
		},
		{
			name: "ir variant without code",
			def: &Definition{
				Action:  "power_on",
				Variant: VariantIR,
			},
			wantErr: true,
		},
		{
			name: "ir code on standard command",
			def: &Definition{
				Action: "power_on",
				IRCode: "0x20DF10EF",
			},
			wantErr: true,
		},
		{
			name: "unknown variant",
			def: &Definition{
				Action:  "power_on",
				Variant: Variant("rf"),
			},
			wantErr: true,
		},
		{
			name: "duplicate parameter",
			def: &Definition{
				Action: "set_input",
				Parameters: []ParameterDefinition{
					{Name: "input", Type: TypeString},
					{Name: "input", Type: TypeString},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown parameter type",
			def: &Definition{
				Action: "set_input",
				Parameters: []ParameterDefinition{
					{Name: "input", Type: ParamType("enum")},
				},
			},
			wantErr: true,
		},
		{
			name: "min greater than max",
			def: &Definition{
				Action: "set_volume",
				Parameters: []ParameterDefinition{
					{Name: "level", Type: TypeRange, Min: floatPtr(100), Max: floatPtr(0)},
				},
			},
			wantErr: true,
		},
		{
			name: "bounds on string parameter",
			def: &Definition{
				Action: "set_input",
				Parameters: []ParameterDefinition{
					{Name: "input", Type: TypeString, Min: floatPtr(0)},
				},
			},
			wantErr: true,
		},
		{
			name: "default not coercible",
			def: &Definition{
				Action: "mute",
				Parameters: []ParameterDefinition{
					{Name: "enabled", Type: TypeBoolean, Required: false, Default: "yes"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefinition(tt.def)
			if tt.wantErr && !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("ValidateDefinition() error = %v, want ErrInvalidDefinition", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateDefinition() unexpected error = %v", err)
			}
		})
	}
}
