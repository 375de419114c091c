package gateway

import (
	"context"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
)

// Sandbox issues local intents without calling the provider. Webhooks are
// still verified with the configured secret.
type Sandbox struct {
	verifier *Verifier
}

func NewSandbox(verifier *Verifier) *Sandbox {
	return &Sandbox{verifier: verifier}
}

func (s *Sandbox) CreateIntent(_ context.Context, order *models.Order) (*Intent, error) {
	id := "pi_" + uuid.NewString()
	util.PaymentIntentsTotal.WithLabelValues("sandbox").Inc()
	return &Intent{ID: id, ClientSecret: id + "_secret_" + order.ID.String()[:8]}, nil
}

func (s *Sandbox) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	return s.verifier.Verify(payload, signatureHeader)
}
