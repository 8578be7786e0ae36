package ai

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeProvider marks every failure of the remote AI call.
const TextCodeProvider = "PROVIDER_ERROR"

// providerError wraps a failed provider call. status is the provider's
// status line ("503 Service Unavailable") when the call got a response.
func providerError(source error, message, status string) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryExternal)
	}
	err = err.WithCode(http.StatusBadGateway).WithTextCode(TextCodeProvider)
	if status != "" {
		err.WithMetadata(map[string]any{"status": status})
	}
	return err
}

// IsProviderError reports whether err came from a provider call.
func IsProviderError(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == TextCodeProvider
}
