package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError maps err onto its code's HTTP status. Stripe redelivers on any non-2xx.
// Untyped errors are classified by CodeOf and answered with the public message only.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	code := pkgerrors.CodeOf(err)
	meta := pkgerrors.MetadataFor(code)
	body := APIError{Code: string(code), Message: meta.PublicMessage}

	if typed := pkgerrors.As(err); typed != nil {
		if callerFacing[code] && typed.Message() != "" {
			body.Message = typed.Message()
		}
		if meta.DetailsAllowed {
			body.Details = typed.Details()
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: body})
}

// callerFacing codes echo the error's own message instead of the generic one.
var callerFacing = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:  true,
	pkgerrors.CodeNotFound:    true,
	pkgerrors.CodeConflict:    true,
	pkgerrors.CodeIdempotency: true,
}

// writeJSON has no logger in scope; encode failures go to the global zerolog logger.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
