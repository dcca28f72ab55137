package policy

import (
	"fmt"

	null "gopkg.in/guregu/null.v3"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

func init() {
	RegisterValidator("default", newDefaultValidator)
	RegisterValidator("field-predicate", newFieldPredicateValidator)
}

// defaultValidator accepts every event unconditionally.
type defaultValidator struct {
	config metadata.Metadata
}

func newDefaultValidator(config metadata.Metadata) (Validator, error) {
	return defaultValidator{config: config}, nil
}

func (v defaultValidator) Validate(metadata.Metadata, dataview.DataView) error {
	return nil
}

func (v defaultValidator) Metadata() metadata.Metadata {
	return v.config
}

// fieldPredicateConfig configures fieldPredicateValidator. Max is
// nullable: an unset Max disables the upper-bound check entirely,
// demonstrating gopkg.in/guregu/null.v3's optional-field idiom on top
// of the gjson-based field reader.
type fieldPredicateConfig struct {
	Field string     `json:"field"`
	Max   null.Float `json:"max"`
	Min   null.Float `json:"min"`
}

// fieldPredicateValidator rejects events whose numeric Field is
// outside [Min, Max), Min inclusive and Max exclusive (either bound
// optional). Used by end-to-end
// scenario 5 in spec.md §8 ("energy" < 100).
type fieldPredicateValidator struct {
	config metadata.Metadata
	parsed fieldPredicateConfig
}

func newFieldPredicateValidator(config metadata.Metadata) (Validator, error) {
	var parsed fieldPredicateConfig
	if err := config.Unmarshal(&parsed); err != nil {
		return nil, errext.Wrap(errext.InvalidMetadata, fmt.Errorf("field-predicate validator config: %w", err))
	}
	if parsed.Field == "" {
		return nil, errext.New(errext.InvalidMetadata, "field-predicate validator requires a non-empty \"field\"")
	}
	return &fieldPredicateValidator{config: config, parsed: parsed}, nil
}

func (v *fieldPredicateValidator) Validate(meta metadata.Metadata, _ dataview.DataView) error {
	field := meta.Get(v.parsed.Field)
	if !field.Exists() {
		return errext.New(errext.InvalidMetadata, "metadata missing required field %q", v.parsed.Field)
	}
	value := field.Float()
	if v.parsed.Max.Valid && value >= v.parsed.Max.Float64 {
		return errext.New(errext.InvalidMetadata, "%s=%v violates max %v", v.parsed.Field, value, v.parsed.Max.Float64)
	}
	if v.parsed.Min.Valid && value < v.parsed.Min.Float64 {
		return errext.New(errext.InvalidMetadata, "%s=%v violates min %v", v.parsed.Field, value, v.parsed.Min.Float64)
	}
	return nil
}

func (v *fieldPredicateValidator) Metadata() metadata.Metadata {
	return v.config
}
