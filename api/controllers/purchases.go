package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avoberry/avoberry-backend/api/responses"
	"github.com/avoberry/avoberry-backend/api/validators"
	"github.com/avoberry/avoberry-backend/internal/purchases"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/logger"
)

type purchaseItemRequest struct {
	SKU             string   `json:"sku" validate:"required"`
	Quantity        int      `json:"quantity" validate:"required,min=1"`
	PurchasePrice   float64  `json:"purchase_price" validate:"min=0"`
	SellPercentage  *float64 `json:"sell_percentage,omitempty"`
	UnitOfMeasureID *int64   `json:"unit_of_measure_id,omitempty"`
}

type purchaseIntakeRequest struct {
	PurchasedByID        string                `json:"purchased_by_id,omitempty"`
	PurchasedByDNI       string                `json:"purchased_by_dni" validate:"required"`
	PurchaseDate         *time.Time            `json:"purchase_date,omitempty"`
	GlobalSellPercentage float64               `json:"global_sell_percentage,omitempty"`
	Items                []purchaseItemRequest `json:"items" validate:"required,min=1,dive"`
}

// PurchaseIntake records a sourcing run: new stock in, IN movements, updated
// purchase prices, and a missing-items recompute.
func PurchaseIntake(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}

		var req purchaseIntakeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := purchases.IntakeInput{
			PurchasedByDNI:       req.PurchasedByDNI,
			PurchaseDate:         req.PurchaseDate,
			GlobalSellPercentage: req.GlobalSellPercentage,
		}
		if req.PurchasedByID != "" {
			id, err := uuid.Parse(req.PurchasedByID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchased_by_id"))
				return
			}
			input.PurchasedByID = &id
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, purchases.IntakeItem{
				SKU:             item.SKU,
				Quantity:        item.Quantity,
				PurchasePrice:   decimal.NewFromFloat(item.PurchasePrice),
				SellPercentage:  item.SellPercentage,
				UnitOfMeasureID: item.UnitOfMeasureID,
			})
		}

		purchase, err := svc.Intake(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}
