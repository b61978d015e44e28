package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

var mmPerMetre = decimal.NewFromInt(1000)

// WarningCabinetNotFound marks a breakdown priced without a cabinet type.
const WarningCabinetNotFound = "cabinet type not found"

// Catalog resolves the rows a price depends on. Implementations return nil
// for unknown or inactive ids.
type Catalog interface {
	CabinetType(ctx context.Context, id uuid.UUID) (*models.CabinetType, error)
	DoorStyle(ctx context.Context, id uuid.UUID) (*models.DoorStyle, error)
	Color(ctx context.Context, id uuid.UUID) (*models.Color, error)
	Finish(ctx context.Context, id uuid.UUID) (*models.Finish, error)
	ProductionOption(ctx context.Context, id uuid.UUID) (*models.ProductionOption, error)
}

// Configuration is a single cabinet selection to price.
type Configuration struct {
	CabinetTypeID       uuid.UUID   `json:"cabinet_type_id" validate:"required"`
	DoorStyleID         *uuid.UUID  `json:"door_style_id,omitempty"`
	ColorID             *uuid.UUID  `json:"color_id,omitempty"`
	FinishID            *uuid.UUID  `json:"finish_id,omitempty"`
	WidthMM             int         `json:"width_mm" validate:"required,gt=0"`
	HeightMM            int         `json:"height_mm" validate:"required,gt=0"`
	DepthMM             int         `json:"depth_mm" validate:"required,gt=0"`
	Quantity            int         `json:"quantity" validate:"required,gt=0"`
	ProductionOptionIDs []uuid.UUID `json:"production_option_ids,omitempty"`
}

// Calculator prices cabinet configurations against the catalog.
type Calculator struct {
	catalog Catalog
}

func NewCalculator(catalog Catalog) (*Calculator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &Calculator{catalog: catalog}, nil
}

// Calculate prices one configuration. Missing lookups contribute zero; only
// malformed input is rejected.
func (c *Calculator) Calculate(ctx context.Context, cfg Configuration) (types.PriceBreakdown, error) {
	if err := validate(cfg); err != nil {
		return types.PriceBreakdown{}, err
	}

	cabinet, err := c.catalog.CabinetType(ctx, cfg.CabinetTypeID)
	if err != nil {
		return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cabinet type")
	}

	var doorRate, colorRate, finishRate decimal.Decimal
	if cfg.DoorStyleID != nil {
		style, err := c.catalog.DoorStyle(ctx, *cfg.DoorStyleID)
		if err != nil {
			return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load door style")
		}
		if style != nil {
			doorRate = style.Rate
		}
	}
	if cfg.ColorID != nil {
		color, err := c.catalog.Color(ctx, *cfg.ColorID)
		if err != nil {
			return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load color")
		}
		if color != nil {
			colorRate = color.Rate
		}
	}
	if cfg.FinishID != nil {
		finish, err := c.catalog.Finish(ctx, *cfg.FinishID)
		if err != nil {
			return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load finish")
		}
		if finish != nil {
			finishRate = finish.Rate
		}
	}

	options := decimal.Zero
	seen := make(map[uuid.UUID]struct{}, len(cfg.ProductionOptionIDs))
	for _, id := range cfg.ProductionOptionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		opt, err := c.catalog.ProductionOption(ctx, id)
		if err != nil {
			return types.PriceBreakdown{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load production option")
		}
		if opt != nil {
			options = options.Add(opt.Price)
		}
	}

	return Compute(cabinet, doorRate, colorRate, finishRate, options, cfg), nil
}

// PriceLine prices a configuration that will be stored on a cart, quote or
// order. Unlike Calculate it rejects unknown or inactive cabinet types.
func (c *Calculator) PriceLine(ctx context.Context, cfg Configuration) (types.PriceBreakdown, error) {
	breakdown, err := c.Calculate(ctx, cfg)
	if err != nil {
		return breakdown, err
	}
	for _, warning := range breakdown.Warnings {
		if warning == WarningCabinetNotFound {
			return types.PriceBreakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "cabinet type not available").
				WithDetails(map[string]string{"cabinet_type_id": cfg.CabinetTypeID.String()})
		}
	}
	return breakdown, nil
}

// Compute applies the pricing formula to already-resolved inputs. A nil
// cabinet contributes no material, door or base cost.
func Compute(cabinet *models.CabinetType, doorRate, colorRate, finishRate, options decimal.Decimal, cfg Configuration) types.PriceBreakdown {
	area := decimal.NewFromInt(int64(cfg.WidthMM)).Div(mmPerMetre).
		Mul(decimal.NewFromInt(int64(cfg.HeightMM)).Div(mmPerMetre))

	material := decimal.Zero
	door := decimal.Zero
	base := decimal.Zero
	var warnings []string
	description := fmt.Sprintf("Cabinet %dx%dx%d", cfg.WidthMM, cfg.HeightMM, cfg.DepthMM)

	if cabinet == nil {
		warnings = append(warnings, WarningCabinetNotFound)
	} else {
		material = area.Mul(cabinet.MaterialRate)
		door = area.Mul(doorRate.Add(colorRate).Add(finishRate)).Mul(decimal.NewFromInt(int64(cabinet.DoorCount)))
		base = cabinet.BasePrice
		description = fmt.Sprintf("%s %dx%dx%d", cabinet.Name, cfg.WidthMM, cfg.HeightMM, cfg.DepthMM)
		warnings = append(warnings, rangeWarnings(cabinet, cfg)...)
	}

	unit := material.Add(door).Add(base).Add(options).Round(2)
	total := unit.Mul(decimal.NewFromInt(int64(cfg.Quantity))).Round(2)

	return types.PriceBreakdown{
		Description: description,
		AreaM2:      area.Round(4),
		Material:    material.Round(2),
		Door:        door.Round(2),
		Options:     options.Round(2),
		BasePrice:   base.Round(2),
		UnitPrice:   unit,
		Quantity:    cfg.Quantity,
		Total:       total,
		Warnings:    warnings,
	}
}

func rangeWarnings(cabinet *models.CabinetType, cfg Configuration) []string {
	var out []string
	check := func(field string, value, minV, maxV int) {
		if minV > 0 && value < minV || maxV > 0 && value > maxV {
			out = append(out, fmt.Sprintf("%s %d outside %d-%d", field, value, minV, maxV))
		}
	}
	check("width_mm", cfg.WidthMM, cabinet.MinWidthMM, cabinet.MaxWidthMM)
	check("height_mm", cfg.HeightMM, cabinet.MinHeightMM, cabinet.MaxHeightMM)
	check("depth_mm", cfg.DepthMM, cabinet.MinDepthMM, cabinet.MaxDepthMM)
	return out
}

func validate(cfg Configuration) error {
	details := map[string]string{}
	if cfg.CabinetTypeID == uuid.Nil {
		details["cabinet_type_id"] = "required"
	}
	if cfg.WidthMM <= 0 {
		details["width_mm"] = "must be positive"
	}
	if cfg.HeightMM <= 0 {
		details["height_mm"] = "must be positive"
	}
	if cfg.DepthMM <= 0 {
		details["depth_mm"] = "must be positive"
	}
	if cfg.Quantity <= 0 {
		details["quantity"] = "must be positive"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cabinet configuration").WithDetails(details)
	}
	return nil
}

// OptionIDs renders production option ids for text[] storage.
func OptionIDs(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// ParseOptionIDs reverses OptionIDs, dropping malformed entries.
func ParseOptionIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		if id, err := uuid.Parse(value); err == nil {
			out = append(out, id)
		}
	}
	return out
}
