package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/avoberry/avoberry-backend/api/responses"
	mpwebhook "github.com/avoberry/avoberry-backend/internal/webhooks/mercadopago"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/logger"
)

// MercadoPagoWebhook receives gateway notifications. Duplicates and ignored
// event types still answer 200 so the gateway stops redelivering them.
func MercadoPagoWebhook(svc *mpwebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		var notification mpwebhook.Notification
		if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
			return
		}

		if err := svc.HandleNotification(r.Context(), notification); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "ok"})
	}
}
