// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"coreledger/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account_type", validateAccountType)
		_ = v.RegisterValidation("account_category", validateAccountCategory)
		_ = v.RegisterValidation("decimal_amount", validateDecimalAmount)
	}
}

// validateAccountType checks membership in the closed account type enumeration.
func validateAccountType(fl validator.FieldLevel) bool {
	return models.AccountType(fl.Field().String()).Valid()
}

// validateAccountCategory checks that the value is a known category for any
// account type; the registry enforces compatibility with the specific type.
func validateAccountCategory(fl validator.FieldLevel) bool {
	category := models.AccountCategory(fl.Field().String())
	for _, t := range []models.AccountType{
		models.AccountTypeAsset,
		models.AccountTypeLiability,
		models.AccountTypeEquity,
		models.AccountTypeRevenue,
		models.AccountTypeExpense,
	} {
		if category.ValidFor(t) {
			return true
		}
	}
	return false
}

// validateDecimalAmount checks that the string parses as a decimal with at
// most four fractional digits.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	amount, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return amount.Equal(amount.Truncate(4))
}
