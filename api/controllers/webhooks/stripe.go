package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/billing-webhooks/api/responses"
	pkgerrors "github.com/angelmondragon/billing-webhooks/pkg/errors"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

const (
	signatureHeader     = "Stripe-Signature"
	defaultMaxBodyBytes = 64 << 10
)

// EventProcessor applies a verified Stripe event exactly once.
type EventProcessor interface {
	Process(ctx context.Context, event *stripe.Event) error
}

// EventVerifier checks the Stripe-Signature header and parses the event.
type EventVerifier interface {
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

// StripeWebhook verifies the Stripe-Signature header and hands the event to the
// processor. Any non-2xx answer makes Stripe redeliver the event later.
func StripeWebhook(processor EventProcessor, verifier EventVerifier, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if processor == nil || verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "stripe signature missing"))
			return
		}

		event, err := verifier.ConstructEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "verify signature"))
			return
		}
		if event.ID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe event id missing"))
			return
		}

		if logg != nil {
			ctx = logg.WithEvent(ctx, event.ID, string(event.Type))
		}
		if err := processor.Process(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
