// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// configValidate is the shared validator instance for Config. Initialized
// once with a custom identifier-name check, following the same
// shared-instance-plus-init pattern used for the domain validators
// elsewhere in this codebase's lineage.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("identifier", validatePropertyName)
}

// validatePropertyName enforces the same identifier grammar store/expr
// requires of a method name: a leading letter, underscore, or '$',
// followed by any mix of letters, digits, underscore, or '$'.
func validatePropertyName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '$'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isAlpha {
			return false
		}
		if i > 0 && !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

// validateConfig checks structural validity before any effect
// registration runs, so a bad Config fails fast with ErrInvalidConfig
// rather than partway through Store construction.
func validateConfig(cfg Config) error {
	if len(cfg.Properties) == 0 {
		return fmt.Errorf("%w: Properties must declare at least one property", ErrInvalidConfig)
	}

	for name := range cfg.Properties {
		if err := configValidate.Var(name, "required,identifier"); err != nil {
			return fmt.Errorf("%w: property name %q is not a valid identifier", ErrInvalidConfig, name)
		}
	}

	for name, m := range cfg.Methods {
		if err := configValidate.Var(name, "required,identifier"); err != nil {
			return fmt.Errorf("%w: method name %q is not a valid identifier", ErrInvalidConfig, name)
		}
		if m == nil || reflect.ValueOf(m).Kind() != reflect.Func {
			return fmt.Errorf("%w: method %q must be a function value", ErrInvalidConfig, name)
		}
	}

	return nil
}
