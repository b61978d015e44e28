package shipping

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

func (s *service) ListRateCards(ctx context.Context) ([]RateCardDTO, error) {
	rows, err := s.repo.ListRateCards(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list rate cards")
	}
	out := make([]RateCardDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, rateCardDTO(row))
	}
	return out, nil
}

func (s *service) CreateRateCard(ctx context.Context, input RateCardInput) (*RateCardDTO, error) {
	return s.saveRateCard(ctx, nil, input)
}

func (s *service) UpdateRateCard(ctx context.Context, id uuid.UUID, input RateCardInput) (*RateCardDTO, error) {
	return s.saveRateCard(ctx, &id, input)
}

func (s *service) saveRateCard(ctx context.Context, id *uuid.UUID, input RateCardInput) (*RateCardDTO, error) {
	if err := validateRateCard(input); err != nil {
		return nil, err
	}
	var saved models.RateCard
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row := &models.RateCard{ID: uuid.New()}
		if id != nil {
			existing, err := repo.FindRateCard(ctx, *id)
			if err != nil {
				return notFoundOr(err, "rate card")
			}
			row = existing
		}
		active := input.IsActive == nil || *input.IsActive
		if row.IsDefault && !input.IsDefault {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "promote another rate card to default first")
		}
		if input.IsDefault && !active {
			return pkgerrors.New(pkgerrors.CodeValidation, "default rate card must be active")
		}
		if input.IsDefault && !row.IsDefault {
			if err := repo.ClearDefaultRateCards(ctx); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default rate card")
			}
		}

		row.Name = strings.TrimSpace(input.Name)
		row.BaseDeliveryFee = input.BaseDeliveryFee.Round(2)
		row.PerItemFee = input.PerItemFee.Round(2)
		row.MetroMultiplier = input.MetroMultiplier.Round(3)
		row.RemoteMultiplier = input.RemoteMultiplier.Round(3)
		row.AssemblyRatePercent = input.AssemblyRatePercent.Round(2)
		row.MinOrderValue = input.MinOrderValue.Round(2)
		row.IsDefault = input.IsDefault
		row.IsActive = active

		if err := repo.SaveRateCard(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "rate card name already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save rate card")
		}
		saved = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := rateCardDTO(saved)
	return &dto, nil
}

// SetDefaultRateCard makes the card the fallback for postcodes without an
// assigned card. Exactly one card is default at a time.
func (s *service) SetDefaultRateCard(ctx context.Context, id uuid.UUID) (*RateCardDTO, error) {
	var saved models.RateCard
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindRateCard(ctx, id)
		if err != nil {
			return notFoundOr(err, "rate card")
		}
		if !row.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "inactive rate card cannot be default")
		}
		if err := repo.ClearDefaultRateCards(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default rate card")
		}
		row.IsDefault = true
		if err := repo.SaveRateCard(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save rate card")
		}
		saved = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := rateCardDTO(saved)
	return &dto, nil
}

func (s *service) DeleteRateCard(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindRateCard(ctx, id)
		if err != nil {
			return notFoundOr(err, "rate card")
		}
		if row.IsDefault {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "default rate card cannot be deleted")
		}
		if err := repo.DeleteRateCard(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete rate card")
		}
		return nil
	})
}

func validateRateCard(input RateCardInput) error {
	details := map[string]string{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	for field, value := range map[string]decimal.Decimal{
		"base_delivery_fee":     input.BaseDeliveryFee,
		"per_item_fee":          input.PerItemFee,
		"assembly_rate_percent": input.AssemblyRatePercent,
		"min_order_value":       input.MinOrderValue,
	} {
		if value.IsNegative() {
			details[field] = "must not be negative"
		}
	}
	if !input.MetroMultiplier.IsPositive() {
		details["metro_multiplier"] = "must be positive"
	}
	if !input.RemoteMultiplier.IsPositive() {
		details["remote_multiplier"] = "must be positive"
	}
	if input.AssemblyRatePercent.GreaterThan(hundred) {
		details["assembly_rate_percent"] = "must not exceed 100"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid rate card").WithDetails(details)
	}
	return nil
}
