package line

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMalformedBatch   = "MALFORMED_BATCH"
	TextCodeSignatureInvalid = "SIGNATURE_INVALID"
	TextCodeBodyParse        = "BODY_PARSE_ERROR"
	TextCodeReplySend        = "REPLY_SEND_ERROR"
)

func lineError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func malformedBatch(reason string) error {
	return lineError("line: events must be an array", goerrors.CategoryBadInput,
		http.StatusBadRequest, TextCodeMalformedBatch, map[string]any{"reason": reason})
}

func bodyParseError(raw []byte) error {
	return lineError("line: request body is not valid JSON", goerrors.CategoryBadInput,
		http.StatusBadRequest, TextCodeBodyParse, map[string]any{"raw": string(raw)})
}

func signatureInvalid(signature string) error {
	return lineError("line: signature validation failed", goerrors.CategoryAuth,
		http.StatusUnauthorized, TextCodeSignatureInvalid, map[string]any{"signature": signature})
}

func replySendError(source error, status int, body string) error {
	meta := map[string]any{}
	if status != 0 {
		meta["status"] = status
		meta["body"] = body
	}
	if source == nil {
		return lineError("line: reply failed", goerrors.CategoryExternal,
			http.StatusBadGateway, TextCodeReplySend, meta)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, "line: reply failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(TextCodeReplySend)
	if len(meta) > 0 {
		err.WithMetadata(meta)
	}
	return err
}

// textCode returns the go-errors text code carried by err, if any.
func textCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}
