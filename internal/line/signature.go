package line

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Line-Signature"

const maxBodyBytes = 1 << 20 // 1MB

// Sign returns the signature the platform would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC of body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignatureMiddleware rejects requests whose body does not match the
// X-Line-Signature header. Rejected requests get 401 with the raw signature
// value as body and never reach the next handler. Bodies over maxBodyBytes
// get 413 without a signature check.
func SignatureMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					logger.Warn("webhook: body too large", zap.Int64("limit", tooLarge.Limit), zap.String("remote", r.RemoteAddr))
					http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}

			sig := r.Header.Get(SignatureHeader)
			if !VerifySignature(secret, body, sig) {
				err := signatureInvalid(sig)
				logger.Warn("webhook: rejected request", zap.Error(err), zap.String("remote", r.RemoteAddr))
				writeText(w, http.StatusUnauthorized, sig)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
