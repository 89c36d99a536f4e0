package config

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("glob", validateGlob)
}

// validateGlob accepts relative doublestar patterns that stay below the root.
func validateGlob(fl validator.FieldLevel) bool {
	pattern := fl.Field().String()
	if pattern == "" {
		return false
	}
	slashed := filepath.ToSlash(pattern)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(pattern) {
		return false
	}
	if slices.Contains(strings.Split(slashed, "/"), "..") {
		return false
	}
	return doublestar.ValidatePattern(slashed)
}
