// Package modelstore writes and reads the logged model: an MLmodel
// descriptor in YAML next to the linear weights in model.json.
package modelstore

import (
	"encoding/json"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const (
	// DescriptorFile is the name of the descriptor in the model directory.
	DescriptorFile = "MLmodel"
	// WeightsFile holds the exported core/model.ModelWeights.
	WeightsFile = "model.json"
	// Flavor names the loader that understands WeightsFile.
	Flavor = "go_linear"
	// DefaultArtifactPath is where the trainer logs the model in a run.
	DefaultArtifactPath = "model"

	timeLayout = "2006-01-02 15:04:05.000000"
)

// ColumnSpec is one column of a model signature.
type ColumnSpec struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Signature lists the model's inputs in the order Predict expects them.
type Signature struct {
	Inputs  []ColumnSpec
	Outputs []ColumnSpec
}

// InputNames returns the input column names in order.
func (s Signature) InputNames() []string {
	names := make([]string, len(s.Inputs))
	for i, c := range s.Inputs {
		names[i] = c.Name
	}
	return names
}

// FlavorConfig describes the go_linear flavor.
type FlavorConfig struct {
	ModelFile string `yaml:"model_file"`
	ModelType string `yaml:"model_type,omitempty"`
	GoVersion string `yaml:"go_version,omitempty"`
}

// signatureYAML keeps the column lists as JSON strings, the way MLmodel
// files store them.
type signatureYAML struct {
	Inputs  string `yaml:"inputs"`
	Outputs string `yaml:"outputs"`
}

// Descriptor is the MLmodel file.
type Descriptor struct {
	ArtifactPath   string                  `yaml:"artifact_path"`
	Flavors        map[string]FlavorConfig `yaml:"flavors"`
	ModelUUID      string                  `yaml:"model_uuid,omitempty"`
	RunID          string                  `yaml:"run_id,omitempty"`
	UTCTimeCreated string                  `yaml:"utc_time_created"`
	RawSignature   *signatureYAML          `yaml:"signature,omitempty"`
}

// SetSignature encodes sig into the descriptor.
func (d *Descriptor) SetSignature(sig Signature) error {
	in, err := json.Marshal(sig.Inputs)
	if err != nil {
		return errors.Wrap(err, "encode signature inputs")
	}
	out, err := json.Marshal(sig.Outputs)
	if err != nil {
		return errors.Wrap(err, "encode signature outputs")
	}
	d.RawSignature = &signatureYAML{Inputs: string(in), Outputs: string(out)}
	return nil
}

// Signature decodes the signature. ok is false when none was logged.
func (d *Descriptor) Signature() (sig Signature, ok bool, err error) {
	if d.RawSignature == nil {
		return Signature{}, false, nil
	}
	if err := json.Unmarshal([]byte(d.RawSignature.Inputs), &sig.Inputs); err != nil {
		return Signature{}, false, errors.Wrap(err, "decode signature inputs")
	}
	if d.RawSignature.Outputs != "" {
		if err := json.Unmarshal([]byte(d.RawSignature.Outputs), &sig.Outputs); err != nil {
			return Signature{}, false, errors.Wrap(err, "decode signature outputs")
		}
	}
	return sig, true, nil
}

// CreatedAt parses UTCTimeCreated.
func (d *Descriptor) CreatedAt() (time.Time, error) {
	return time.Parse(timeLayout, d.UTCTimeCreated)
}

func writeDescriptor(path string, d *Descriptor) error {
	b, err := yaml.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encode MLmodel")
	}
	return errors.WithStack(os.WriteFile(path, b, 0o644))
}

func readDescriptor(path string) (*Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read MLmodel")
	}
	var d Descriptor
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, errors.Wrap(err, "decode MLmodel")
	}
	return &d, nil
}
