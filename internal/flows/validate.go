package flows

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("flows: invalid configuration")

var validate = validator.New()

// ValidateStage checks structural rules plus the kind-specific parameter
// shapes. Configuration is validated when loaded or saved so evaluation
// never has to re-check shapes.
func ValidateStage(s Stage) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: stage %s: %v", ErrInvalidConfig, s.ID, err)
	}
	if s.MandatoryKind != "" && !s.Mandatory {
		return fmt.Errorf("%w: stage %s: mandatory_kind set on non-mandatory stage", ErrInvalidConfig, s.ID)
	}
	for _, c := range append(append([]Condition{}, s.ExitConditions...), s.EntryConditions...) {
		if err := validateCondition(c); err != nil {
			return fmt.Errorf("%w: stage %s: %v", ErrInvalidConfig, s.ID, err)
		}
	}
	return nil
}

func validateCondition(c Condition) error {
	if c.ID == "" {
		return errors.New("condition id required")
	}
	if c.AutoSkip && c.Params.TargetStageID == "" {
		return fmt.Errorf("condition %s: auto_skip requires target_stage_id", c.ID)
	}
	// Stock kinds must carry the inventory field, but an empty value is
	// allowed: the engine treats it as unconfigured and holds the order.
	return nil
}

// ValidateFlow checks the flow and its stages together. Within one flow
// at most one stage may be pinned initial and at most one final.
func ValidateFlow(f Flow, stages []Stage) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: flow %s: %v", ErrInvalidConfig, f.ID, err)
	}
	var initial, final int
	for _, s := range stages {
		if s.FlowID != f.ID {
			return fmt.Errorf("%w: stage %s belongs to flow %s, not %s", ErrInvalidConfig, s.ID, s.FlowID, f.ID)
		}
		if err := ValidateStage(s); err != nil {
			return err
		}
		switch s.MandatoryKind {
		case MandatoryInitial:
			initial++
		case MandatoryFinal:
			final++
		}
	}
	if initial > 1 {
		return fmt.Errorf("%w: flow %s: more than one initial mandatory stage", ErrInvalidConfig, f.ID)
	}
	if final > 1 {
		return fmt.Errorf("%w: flow %s: more than one final mandatory stage", ErrInvalidConfig, f.ID)
	}
	return nil
}
