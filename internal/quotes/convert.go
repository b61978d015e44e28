package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/pricing"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/documents"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

// ConvertToCart copies the quote's lines into the customer's active cart,
// re-priced at current catalog rates.
func (s *service) ConvertToCart(ctx context.Context, customerID, id uuid.UUID) (*CartRef, error) {
	quote, err := s.load(ctx, s.repo, &customerID, id, false)
	if err != nil {
		return nil, err
	}
	if len(quote.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote has no items")
	}
	lines := make([]models.CartItem, 0, len(quote.Items))
	count := 0
	for _, item := range quote.Items {
		breakdown, err := s.pricer.PriceLine(ctx, pricing.Configuration{
			CabinetTypeID:       item.CabinetTypeID,
			DoorStyleID:         item.DoorStyleID,
			ColorID:             item.ColorID,
			FinishID:            item.FinishID,
			WidthMM:             item.WidthMM,
			HeightMM:            item.HeightMM,
			DepthMM:             item.DepthMM,
			Quantity:            item.Quantity,
			ProductionOptionIDs: pricing.ParseOptionIDs(item.ProductionOptionIDs),
		})
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.CartItem{
			CabinetTypeID:       item.CabinetTypeID,
			DoorStyleID:         item.DoorStyleID,
			ColorID:             item.ColorID,
			FinishID:            item.FinishID,
			WidthMM:             item.WidthMM,
			HeightMM:            item.HeightMM,
			DepthMM:             item.DepthMM,
			Quantity:            item.Quantity,
			ProductionOptionIDs: item.ProductionOptionIDs,
			Configuration:       item.Configuration,
			Breakdown:           breakdown,
			UnitPrice:           breakdown.UnitPrice,
			TotalPrice:          breakdown.Total,
		})
		count += item.Quantity
	}

	var cartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.carts.WithTx(tx)
		now := s.now()
		active, err := repo.FindActive(ctx, customerID)
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			active = &models.Cart{
				ID:             uuid.New(),
				CustomerID:     customerID,
				Status:         enums.CartStatusActive,
				Postcode:       quote.Postcode,
				LastActivityAt: now,
			}
			if err := repo.Create(ctx, active); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		cartID = active.ID
		next, err := repo.NextSortOrder(ctx, active.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "next sort order")
		}
		for i := range lines {
			line := lines[i]
			line.ID = uuid.New()
			line.CartID = active.ID
			line.SortOrder = next + i
			if err := repo.CreateItem(ctx, &line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "copy quote item")
			}
		}
		if err := repo.Touch(ctx, active.ID, map[string]any{"last_activity_at": now}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CartRef{CartID: cartID, ItemCount: count}, nil
}

// PDF renders the quote for download.
func (s *service) PDF(ctx context.Context, customerID *uuid.UUID, id uuid.UUID) (*Document, error) {
	quote, err := s.load(ctx, s.repo, customerID, id, false)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindCustomer(ctx, quote.CustomerID)
	if err != nil {
		return nil, notFoundOr(err, "customer")
	}
	content, err := documents.RenderQuote(s.quoteDocument(quote, user))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render quote")
	}
	return &Document{
		FileName:    fmt.Sprintf("%s-v%d.pdf", quote.QuoteNumber, quote.Version),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func (s *service) quoteDocument(quote *models.Quote, user *models.User) documents.QuoteDocument {
	party := documents.Party{Name: user.FullName(), Email: user.Email}
	if user.Phone != nil {
		party.Phone = *user.Phone
	}
	issued := quote.CreatedAt
	if quote.SentAt != nil {
		issued = *quote.SentAt
	}
	doc := documents.QuoteDocument{
		Business:          s.business,
		Number:            quote.QuoteNumber,
		Version:           quote.Version,
		Status:            string(quote.Status),
		IssuedAt:          issued,
		ValidUntil:        quote.ValidUntil,
		Customer:          party,
		IncludeAssembly:   quote.IncludeAssembly,
		Subtotal:          quote.Subtotal,
		AssemblySurcharge: quote.AssemblySurcharge,
		DeliveryFee:       quote.DeliveryFee,
		Discount:          quote.Discount,
		GST:               quote.GST,
		Total:             quote.Total,
		Currency:          s.currency,
	}
	if quote.Postcode != nil {
		doc.Postcode = *quote.Postcode
	}
	if quote.Notes != nil {
		doc.Notes = *quote.Notes
	}
	for _, item := range quote.Items {
		doc.Items = append(doc.Items, documents.LineItem{
			Description: item.Description,
			Summary:     lineSummary(item),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.TotalPrice,
		})
	}
	return doc
}

func lineSummary(item models.QuoteItem) string {
	size := fmt.Sprintf("%dx%dx%dmm", item.WidthMM, item.HeightMM, item.DepthMM)
	if extra := item.Configuration.Summary(); extra != "" {
		return size + ", " + extra
	}
	return size
}
