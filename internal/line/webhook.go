package line

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// BatchHandler is called once per structurally valid webhook request, with
// the decoded events in delivery order. It must return only after every event
// has been handled.
type BatchHandler func(ctx context.Context, events []Event)

// WebhookHandler turns a verified webhook request into one call of its
// BatchHandler.
type WebhookHandler struct {
	onBatch BatchHandler
	logger  *zap.Logger
}

// NewWebhookHandler returns a handler that passes decoded batches to onBatch.
func NewWebhookHandler(onBatch BatchHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{onBatch: onBatch, logger: logger}
}

// HandleIncoming processes a webhook POST. The signature has already been
// checked by SignatureMiddleware.
func (h *WebhookHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	events, invalid, err := DecodeBatch(body)
	if err != nil {
		switch textCode(err) {
		case TextCodeBodyParse:
			h.logger.Warn("webhook: invalid JSON body", zap.Error(err))
			writeText(w, http.StatusBadRequest, string(body))
		default:
			h.logger.Warn("webhook: invalid event format", zap.Error(err))
			writeText(w, http.StatusBadRequest, "Invalid format")
		}
		return
	}

	for _, i := range invalid {
		h.logger.Warn("webhook: undecodable event", zap.Int("event", i+1))
	}

	// Replies must go out even if the platform drops the connection.
	h.onBatch(context.WithoutCancel(r.Context()), events)

	writeText(w, http.StatusOK, "OK")
}

// DecodeBatch validates the envelope and decodes each element of "events".
// An element whose optional fields have the wrong shape still yields its type
// and reply token. Elements without even those are returned as zero Events
// and their indexes are listed in invalid, so batch positions stay stable.
func DecodeBatch(body []byte) (events []Event, invalid []int, err error) {
	if !json.Valid(body) {
		return nil, nil, bodyParseError(body)
	}

	var envelope struct {
		Events json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, malformedBatch("body is not an object")
	}

	raw := bytes.TrimSpace(envelope.Events)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, nil, malformedBatch("events is not an array")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, malformedBatch(err.Error())
	}

	events = make([]Event, len(elems))
	for i, elem := range elems {
		ev, ok := decodeEvent(elem)
		if !ok {
			invalid = append(invalid, i)
		}
		events[i] = ev
	}
	return events, invalid, nil
}

func decodeEvent(elem json.RawMessage) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(elem, &ev); err == nil {
		return ev, true
	}

	var minimal struct {
		Type       string `json:"type"`
		ReplyToken string `json:"replyToken"`
	}
	if err := json.Unmarshal(elem, &minimal); err != nil {
		return Event{}, false
	}
	return Event{Type: minimal.Type, ReplyToken: minimal.ReplyToken}, true
}
