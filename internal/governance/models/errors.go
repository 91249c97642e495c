package models

import (
	"errors"

	dErrors "pulsegate/pkg/domain-errors"
)

// ErrConfiguration marks every error raised while configuring a governance
// session. It is fatal to that session; evaluation must not proceed.
var ErrConfiguration = errors.New("governance configuration error")

// NewConfigurationError returns an error that satisfies both
// errors.Is(err, ErrConfiguration) and HasCode(err, CodeInvalidConfig).
func NewConfigurationError(msg string) error {
	return dErrors.Wrap(ErrConfiguration, dErrors.CodeInvalidConfig, msg)
}

// IsConfigurationError reports whether err came from configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration) || dErrors.HasCode(err, dErrors.CodeInvalidConfig)
}
