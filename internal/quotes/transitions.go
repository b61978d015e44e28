package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/outbox"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
	"github.com/northcraft/cabinetry-backend/pkg/types"
)

func (s *service) Send(ctx context.Context, actorID, id uuid.UUID) (*QuoteDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := s.load(ctx, repo, nil, id, true)
		if err != nil {
			return err
		}
		if quote.Status != enums.QuoteStatusDraft {
			return stateConflict(quote.Status, enums.QuoteStatusSent)
		}
		if len(quote.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quote has no items")
		}
		now := s.now()
		validUntil := now.AddDate(0, 0, s.validity)
		if quote.ValidUntil != nil && quote.ValidUntil.After(now) {
			validUntil = *quote.ValidUntil
		}
		if err := s.move(ctx, repo, quote, []enums.QuoteStatus{enums.QuoteStatusDraft}, enums.QuoteStatusSent, map[string]any{
			"sent_at":     now,
			"valid_until": validUntil,
		}); err != nil {
			return err
		}
		quote.ValidUntil = &validUntil
		return s.emit(ctx, tx, enums.EventQuoteSent, quote, admin(actorID), nil, "")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, nil, id)
}

// MarkViewed records the customer's first look at a sent quote and returns
// it. Other states are returned unchanged.
func (s *service) MarkViewed(ctx context.Context, customerID, id uuid.UUID) (*QuoteDTO, error) {
	quote, err := s.load(ctx, s.repo, &customerID, id, false)
	if err != nil {
		return nil, err
	}
	if quote.Status == enums.QuoteStatusSent {
		_, err := s.repo.UpdateStatus(ctx, id, []enums.QuoteStatus{enums.QuoteStatusSent}, enums.QuoteStatusViewed, map[string]any{
			"viewed_at": s.now(),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark quote viewed")
		}
	}
	return s.Get(ctx, &customerID, id)
}

// Accept converts an open quote into an order in one transaction. The
// delivery address defaults to the customer's default address and must sit
// in the postcode the quote was priced for.
func (s *service) Accept(ctx context.Context, customerID, id uuid.UUID, input AcceptInput) (*AcceptResult, error) {
	if _, err := s.load(ctx, s.repo, &customerID, id, false); err != nil {
		return nil, err
	}
	address, err := s.deliveryAddress(ctx, customerID, input.AddressID)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := s.load(ctx, repo, &customerID, id, true)
		if err != nil {
			return err
		}
		if !isOpen(quote.Status) {
			return stateConflict(quote.Status, enums.QuoteStatusAccepted)
		}
		now := s.now()
		if quote.ValidUntil != nil && !now.Before(*quote.ValidUntil) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quote has expired").
				WithDetails(map[string]any{"valid_until": quote.ValidUntil})
		}
		if err := s.checkDelivery(ctx, quote, address); err != nil {
			return err
		}
		order, err = s.orders.CreateFromQuote(ctx, tx, quote, address)
		if err != nil {
			return err
		}
		if err := s.move(ctx, repo, quote, openStatuses, enums.QuoteStatusAccepted, map[string]any{
			"accepted_at": now,
			"order_id":    order.ID,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventQuoteAccepted, quote, customer(customerID), &order.ID, "")
	})
	if err != nil {
		return nil, err
	}
	dto, err := s.Get(ctx, &customerID, id)
	if err != nil {
		return nil, err
	}
	return &AcceptResult{Quote: *dto, OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func (s *service) Reject(ctx context.Context, customerID, id uuid.UUID, input RejectInput) (*QuoteDTO, error) {
	reason := strings.TrimSpace(input.Reason)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := s.load(ctx, repo, &customerID, id, true)
		if err != nil {
			return err
		}
		if !isOpen(quote.Status) {
			return stateConflict(quote.Status, enums.QuoteStatusRejected)
		}
		updates := map[string]any{"rejected_at": s.now()}
		if reason != "" {
			updates["rejection_reason"] = reason
		}
		if err := s.move(ctx, repo, quote, openStatuses, enums.QuoteStatusRejected, updates); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventQuoteRejected, quote, customer(customerID), nil, reason)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, &customerID, id)
}

// Revise freezes the current version and reopens the quote as a draft.
func (s *service) Revise(ctx context.Context, actorID, id uuid.UUID) (*QuoteDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := s.load(ctx, repo, nil, id, true)
		if err != nil {
			return err
		}
		if !contains(revisableStatuses, quote.Status) {
			return stateConflict(quote.Status, enums.QuoteStatusDraft)
		}
		frozen, err := json.Marshal(snapshotOf(quote))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot quote")
		}
		err = repo.CreateVersion(ctx, &models.QuoteVersion{
			ID:        uuid.New(),
			QuoteID:   quote.ID,
			Version:   quote.Version,
			Status:    string(quote.Status),
			Snapshot:  frozen,
			CreatedBy: &actorID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store quote version")
		}
		return s.move(ctx, repo, quote, revisableStatuses, enums.QuoteStatusDraft, map[string]any{
			"version":          quote.Version + 1,
			"sent_at":          nil,
			"viewed_at":        nil,
			"rejected_at":      nil,
			"rejection_reason": nil,
			"expired_at":       nil,
			"valid_until":      nil,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, nil, id)
}

// ExpireDue closes open quotes past their validity and returns how many
// were expired.
func (s *service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.DueForExpiry(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load expiring quotes")
	}
	expired := 0
	for i := range due {
		quote := due[i]
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			affected, err := s.repo.WithTx(tx).UpdateStatus(ctx, quote.ID, openStatuses, enums.QuoteStatusExpired, map[string]any{
				"expired_at": now,
			})
			if err != nil || affected == 0 {
				return err
			}
			changed = true
			quote.Status = enums.QuoteStatusExpired
			return s.emit(ctx, tx, enums.EventQuoteExpired, &quote, nil, nil, "")
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire quote")
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// move applies a guarded status change and records it on the in-memory quote.
func (s *service) move(ctx context.Context, repo Repository, quote *models.Quote, from []enums.QuoteStatus, to enums.QuoteStatus, updates map[string]any) error {
	affected, err := repo.UpdateStatus(ctx, quote.ID, from, to, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update quote status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "quote changed concurrently")
	}
	previous := quote.Status
	quote.Status = to
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"quote_number": quote.QuoteNumber,
			"from":         string(previous),
			"to":           string(to),
		})
		s.logg.Info(logCtx, "quote status changed")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, quote *models.Quote, actor *outbox.ActorRef, orderID *uuid.UUID, reason string) error {
	err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Actor:         actor,
		Data: payloads.QuoteEvent{
			QuoteID:     quote.ID,
			QuoteNumber: quote.QuoteNumber,
			CustomerID:  quote.CustomerID,
			Status:      quote.Status,
			Version:     quote.Version,
			Total:       quote.Total,
			ValidUntil:  quote.ValidUntil,
			OrderID:     orderID,
			Reason:      reason,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) deliveryAddress(ctx context.Context, customerID uuid.UUID, addressID *uuid.UUID) (*types.ShippingAddress, error) {
	var (
		address *models.Address
		err     error
	)
	if addressID != nil {
		address, err = s.addresses.FindForUser(ctx, customerID, *addressID)
		if err != nil {
			return nil, notFoundOr(err, "address")
		}
	} else {
		address, err = s.addresses.FindDefault(ctx, customerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default address")
		}
	}
	shipTo := address.Snapshot()
	return &shipTo, nil
}

// checkDelivery confirms the order ships where the quote's delivery and
// assembly were priced, and that the postcode is still serviced.
func (s *service) checkDelivery(ctx context.Context, quote *models.Quote, address *types.ShippingAddress) error {
	quoted := ""
	if quote.Postcode != nil {
		quoted = strings.TrimSpace(*quote.Postcode)
	}
	postcode := quoted
	if address != nil {
		postcode = strings.TrimSpace(address.Postcode)
		if postcode != quoted {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is outside the quoted postcode; ask for a revised quote").
				WithDetails(map[string]string{"quoted_postcode": quoted, "address_postcode": postcode})
		}
	}
	if postcode == "" {
		return nil
	}
	eligibility, err := s.estimator.Lookup(ctx, postcode)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "we do not deliver to this postcode").
				WithDetails(map[string]string{"postcode": postcode})
		}
		return err
	}
	if !eligibility.DeliveryAvailable {
		return pkgerrors.New(pkgerrors.CodeValidation, "we do not deliver to this postcode").
			WithDetails(map[string]string{"postcode": postcode})
	}
	if quote.IncludeAssembly && !eligibility.AssemblyAvailable {
		return pkgerrors.New(pkgerrors.CodeValidation, "assembly is not available for this postcode").
			WithDetails(map[string]string{"postcode": postcode})
	}
	return nil
}

func snapshotOf(quote *models.Quote) snapshot {
	items := make([]ItemDTO, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, toItemDTO(item))
	}
	return snapshot{
		Items:           items,
		Totals:          totalsOf(quote),
		Postcode:        quote.Postcode,
		IncludeAssembly: quote.IncludeAssembly,
		ValidUntil:      quote.ValidUntil,
		SentAt:          quote.SentAt,
		Notes:           quote.Notes,
	}
}

func stateConflict(from, to enums.QuoteStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move quote from "+string(from)+" to "+string(to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func isOpen(status enums.QuoteStatus) bool {
	return contains(openStatuses, status)
}

func contains(statuses []enums.QuoteStatus, status enums.QuoteStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func admin(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.UserRoleAdmin)}
}

func customer(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.UserRoleCustomer)}
}
