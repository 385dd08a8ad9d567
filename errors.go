package gateway

import (
	stderrors "errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// ErrMissingProvider is returned when the gateway is wired without an identity provider.
var ErrMissingProvider = errors.New("missing identity provider", errors.CategoryInternal)

// domainCategories lists the error categories a provider may legitimately
// surface to callers. Anything outside this set is treated as an internal
// fault and propagates to the framework boundary instead of being translated.
var domainCategories = map[errors.Category]struct{}{
	errors.CategoryAuth:       {},
	errors.CategoryAuthz:      {},
	errors.CategoryValidation: {},
	errors.CategoryConflict:   {},
	errors.CategoryNotFound:   {},
	errors.CategoryBadInput:   {},
	errors.CategoryRateLimit:  {},
}

// AsProviderError reports whether err is a provider domain error, meaning a
// rich error whose category the provider is expected to raise and whose Code
// carries the HTTP status to answer with.
func AsProviderError(err error) (*errors.Error, bool) {
	if err == nil {
		return nil, false
	}

	var rich *errors.Error
	if !errors.As(err, &rich) {
		return nil, false
	}

	if _, ok := domainCategories[rich.Category]; !ok {
		return nil, false
	}

	return rich, true
}

// FormatValidationErrorToMap flattens an ozzo validation error into
// field -> message diagnostics for the client.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}
