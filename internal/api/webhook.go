package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"candypic/internal/metrics"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	kindNotify         = "notify"
	kindBookingUpdate  = "booking_update"
	kindDeviceRegister = "device_register"
	kindDebug          = "debug"
	kindUpdate         = "update"
	kindUnknown        = "unknown"

	maxBodyBytes   = 1 << 20
	handlerTimeout = 30 * time.Second
)

// dbPayload is the datastore webhook envelope. Some senders post the bare
// record instead; decodeRecord falls back to the whole body then.
type dbPayload struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

func requestKind(r *http.Request) string {
	switch kind := r.URL.Query().Get("type"); kind {
	case "":
		return kindUpdate
	case kindNotify, kindBookingUpdate, kindDeviceRegister, kindDebug:
		return kind
	default:
		return kindUnknown
	}
}

// handleWebhook answers 200 for everything it accepts, including payloads it
// cannot use, so senders never retry. Only a wrong secret or rate limiting
// produce other statuses.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	kind := requestKind(r)
	log := zerolog.Ctx(r.Context())

	if !s.secrets.allow(r, kind) {
		log.Warn().Str("webhook", kind).Msg("Webhook secret mismatch")
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	metrics.IncWebhook(kind)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Str("webhook", kind).Msg("Unreadable webhook body, ignored")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "kind": kind, "ignored": true})
		return
	}

	// the work outlives a dropped sender connection
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), handlerTimeout)
	defer cancel()

	if err := s.dispatch(ctx, kind, body); err != nil {
		log.Warn().Err(err).Str("webhook", kind).Msg("Webhook not processed")
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "kind": kind})
}

// dispatch hands the body to exactly one handler for its kind.
func (s *HTTPServer) dispatch(ctx context.Context, kind string, body []byte) error {
	switch kind {
	case kindNotify:
		var booking models.Booking
		if _, err := decodeRecord(body, &booking); err != nil {
			return err
		}
		return s.handler.NotifyNewBooking(ctx, &booking)

	case kindBookingUpdate:
		var booking models.Booking
		oldRaw, err := decodeRecord(body, &booking)
		if err != nil {
			return err
		}
		var old *models.Booking
		if len(oldRaw) > 0 && !bytes.Equal(oldRaw, []byte("null")) {
			old = &models.Booking{}
			if err := json.Unmarshal(oldRaw, old); err != nil {
				return err
			}
		}
		return s.handler.HandleBookingUpdate(ctx, &booking, old)

	case kindDeviceRegister:
		var device models.Device
		if _, err := decodeRecord(body, &device); err != nil {
			return err
		}
		_, err := s.handler.HandleDeviceRegistration(ctx, &device)
		return err

	case kindDebug:
		return s.handler.SendDebug(ctx)

	case kindUpdate:
		var update tgbotapi.Update
		if err := json.Unmarshal(body, &update); err != nil {
			return err
		}
		s.handler.HandleUpdate(ctx, update)
		return nil
	}
	return errors.New("unknown webhook kind")
}

// decodeRecord unmarshals the envelope's record into v and returns old_record raw.
func decodeRecord(body []byte, v any) (json.RawMessage, error) {
	var payload dbPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Record) > 0 && !bytes.Equal(payload.Record, []byte("null")) {
		return payload.OldRecord, json.Unmarshal(payload.Record, v)
	}
	return nil, json.Unmarshal(body, v)
}
