package validations

import (
	"context"
	"errors"
	"regexp"

	domainCache "github.com/AzielCF/az-audit/domains/cache"
	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	pkgError "github.com/AzielCF/az-audit/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

func ValidateGetByCategory(ctx context.Context, request domainDetection.CategoryRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Category, validation.Required, validation.Match(categoryPattern)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

// positiveIfSet rejects explicit zero or negative values; Min alone would
// skip 0 as an empty value.
var positiveIfSet = validation.By(func(value interface{}) error {
	n, ok := value.(*int)
	if !ok || n == nil {
		return nil
	}
	if *n < 1 {
		return errors.New("must be no less than 1")
	}
	return nil
})

func ValidateUpdateSettings(ctx context.Context, request domainDetection.SettingsRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ScanIntervalMins, positiveIfSet),
		validation.Field(&request.InactiveDays, positiveIfSet),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateInvalidateCache(ctx context.Context, request domainCache.InvalidateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Key, validation.When(request.Type == "", validation.Empty.Error("key requires type"))),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
