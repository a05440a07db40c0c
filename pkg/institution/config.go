package institution

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

// Processor names accepted in a definition file. "flag" takes the active value
// after a colon, e.g. "flag:Active".
const (
	ProcessorLookup = "lookup"
	ProcessorText   = "text"
	ProcessorFlag   = "flag"
)

type KindDefinition struct {
	Translations map[string]string `yaml:"translations" json:"translations"`
	Processors   map[string]string `yaml:"processors" json:"processors"`
}

type Definition struct {
	Name      string         `yaml:"name" json:"name"`
	Patient   KindDefinition `yaml:"patient" json:"patient"`
	Treatment KindDefinition `yaml:"treatment" json:"treatment"`
}

type DefinitionsConfig struct {
	Institutions []Definition `yaml:"institutions" json:"institutions"`
}

func LoadDefinitions(path string) (DefinitionsConfig, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefinitionsConfig{}, err
	}
	return ParseDefinitions(content)
}

func ParseDefinitions(content []byte) (DefinitionsConfig, error) {
	var cfg DefinitionsConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return DefinitionsConfig{}, err
	}
	if len(cfg.Institutions) == 0 {
		return DefinitionsConfig{}, errors.New("no institutions defined")
	}
	return cfg, nil
}

// Build turns a definition into an adapter.
func (d Definition) Build() (Adapter, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, errors.New("institution name required")
	}
	patient, err := d.Patient.normalizer(record.KindPatient)
	if err != nil {
		return nil, fmt.Errorf("institution %s: %w", d.Name, err)
	}
	treatment, err := d.Treatment.normalizer(record.KindTreatment)
	if err != nil {
		return nil, fmt.Errorf("institution %s: %w", d.Name, err)
	}
	return NewLayout(d.Name, patient, treatment), nil
}

func (k KindDefinition) normalizer(kind record.Kind) (*record.Normalizer, error) {
	if _, ok := k.Translations[record.FieldID]; !ok {
		return nil, fmt.Errorf("%s translations must map %q", kind, record.FieldID)
	}
	overrides := make(map[string]record.Processor, len(k.Processors))
	for field, spec := range k.Processors {
		p, err := parseProcessor(spec)
		if err != nil {
			return nil, fmt.Errorf("%s field %s: %w", kind, field, err)
		}
		overrides[field] = p
	}
	return record.NewNormalizer(kind, record.Translations(k.Translations).Clone(), overrides)
}

func parseProcessor(spec string) (record.Processor, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	switch strings.ToLower(name) {
	case ProcessorLookup, "":
		return record.Lookup, nil
	case ProcessorText:
		return record.Text(record.Lookup), nil
	case ProcessorFlag:
		if arg == "" {
			return nil, errors.New("flag processor needs an active value")
		}
		return record.Flag(arg), nil
	default:
		return nil, fmt.Errorf("unknown processor %q", spec)
	}
}

// RegisterDefinitions builds and registers every definition in cfg.
func (r *Registry) RegisterDefinitions(cfg DefinitionsConfig) error {
	for _, def := range cfg.Institutions {
		adapter, err := def.Build()
		if err != nil {
			return err
		}
		if err := r.Register(adapter); err != nil {
			return err
		}
	}
	return nil
}

// LoadRegistry returns the built-in adapters plus those defined in path, if set.
func LoadRegistry(path string) (*Registry, error) {
	registry := DefaultRegistry()
	if path == "" {
		return registry, nil
	}
	cfg, err := LoadDefinitions(path)
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterDefinitions(cfg); err != nil {
		return nil, err
	}
	return registry, nil
}
