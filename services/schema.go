package services

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateRow checks the data of a services row as the backend stores it.
// Register it with stores that enforce table rules.
func ValidateRow(data map[string]any) error {
	return validation.Validate(data,
		validation.Map(
			validation.Key("serviceName", validation.Required, validation.Length(1, 100)),
			validation.Key("email", validation.Required),
			validation.Key("ownerId", validation.Required),
			validation.Key("categoryId", validation.Length(0, 64)).Optional(),
			validation.Key("hasPassword", validation.NotNil).Optional(),
			validation.Key("isFavorite", validation.NotNil).Optional(),
		).AllowExtraKeys(),
	)
}
