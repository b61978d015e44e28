package shipping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"github.com/northcraft/cabinetry-backend/pkg/maps"
	"github.com/northcraft/cabinetry-backend/pkg/pagination"
)

var hundred = decimal.NewFromInt(100)

// Estimator is the slice of the service used by cart, quotes and checkout.
type Estimator interface {
	Lookup(ctx context.Context, postcode string) (*Eligibility, error)
	EstimateDelivery(ctx context.Context, req EstimateRequest) (*Estimate, error)
}

// Service administers delivery coverage and prices delivery and assembly.
type Service interface {
	Estimator

	ListZones(ctx context.Context, filter ZoneFilter) (*ZoneList, error)
	GetZone(ctx context.Context, id uuid.UUID) (*PostcodeZoneDTO, error)
	CreateZone(ctx context.Context, input PostcodeZoneInput) (*PostcodeZoneDTO, error)
	UpdateZone(ctx context.Context, id uuid.UUID, input PostcodeZoneInput) (*PostcodeZoneDTO, error)
	DeleteZone(ctx context.Context, id uuid.UUID) error

	Geocode(ctx context.Context, id uuid.UUID) (*PostcodeZoneDTO, error)
	GeocodeMissing(ctx context.Context, limit int) (*GeocodeResult, error)

	ListAssemblyZones(ctx context.Context) ([]AssemblyZoneDTO, error)
	CreateAssemblyZone(ctx context.Context, input AssemblyZoneInput) (*AssemblyZoneDTO, error)
	UpdateAssemblyZone(ctx context.Context, id uuid.UUID, input AssemblyZoneInput) (*AssemblyZoneDTO, error)
	DeleteAssemblyZone(ctx context.Context, id uuid.UUID) error
	PreviewRadius(ctx context.Context, zoneID uuid.UUID) (*RadiusPreview, error)
	ApplyRadius(ctx context.Context, zoneID uuid.UUID, overwriteManual bool) (*ApplyResult, error)
	AssignZoneManually(ctx context.Context, postcodeZoneID uuid.UUID, assemblyZoneID *uuid.UUID) (*PostcodeZoneDTO, error)
	ClearManual(ctx context.Context, postcodeZoneID uuid.UUID) (*PostcodeZoneDTO, error)

	ListRateCards(ctx context.Context) ([]RateCardDTO, error)
	CreateRateCard(ctx context.Context, input RateCardInput) (*RateCardDTO, error)
	UpdateRateCard(ctx context.Context, id uuid.UUID, input RateCardInput) (*RateCardDTO, error)
	SetDefaultRateCard(ctx context.Context, id uuid.UUID) (*RateCardDTO, error)
	DeleteRateCard(ctx context.Context, id uuid.UUID) error

	Import(ctx context.Context, r io.ReaderAt, size int64) (*ImportResult, error)
	Export(ctx context.Context, w io.Writer) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type geocoder interface {
	GeocodePostcode(ctx context.Context, postcode string) (*maps.GeocodeResult, error)
}

// ServiceParams wires the shipping service.
type ServiceParams struct {
	Repo     *Repository
	TxRunner txRunner
	Geocoder geocoder
	Config   config.ShippingConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo            *Repository
	tx              txRunner
	geocoder        geocoder
	postcode        *regexp.Regexp
	defaultLeadTime int
	logg            *logger.Logger
	now             func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	lead := params.Config.DefaultLeadTimeDays
	if lead <= 0 {
		lead = 28
	}
	return &service{
		repo:            params.Repo,
		tx:              params.TxRunner,
		geocoder:        params.Geocoder,
		postcode:        params.Config.PostcodeRegexp(),
		defaultLeadTime: lead,
		logg:            params.Logger,
		now:             now,
	}, nil
}

func (s *service) ListZones(ctx context.Context, filter ZoneFilter) (*ZoneList, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListZones(ctx, filter, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list postcode zones")
	}
	rows, next := pagination.Trim(rows, filter.Limit, func(m models.PostcodeZone) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	items := make([]PostcodeZoneDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, zoneDTO(row))
	}
	return &ZoneList{Items: items, NextCursor: next}, nil
}

func (s *service) GetZone(ctx context.Context, id uuid.UUID) (*PostcodeZoneDTO, error) {
	row, err := s.repo.FindZone(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "postcode zone")
	}
	dto := zoneDTO(*row)
	return &dto, nil
}

func (s *service) CreateZone(ctx context.Context, input PostcodeZoneInput) (*PostcodeZoneDTO, error) {
	if err := s.validateZone(ctx, input); err != nil {
		return nil, err
	}
	row := &models.PostcodeZone{ID: uuid.New()}
	s.applyZone(row, input)
	if err := s.repo.CreateZone(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "postcode already configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create postcode zone")
	}
	return s.GetZone(ctx, row.ID)
}

func (s *service) UpdateZone(ctx context.Context, id uuid.UUID, input PostcodeZoneInput) (*PostcodeZoneDTO, error) {
	if err := s.validateZone(ctx, input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindZone(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "postcode zone")
	}
	s.applyZone(row, input)
	updates := map[string]any{
		"postcode":           row.Postcode,
		"suburb":             row.Suburb,
		"state":              row.State,
		"lat":                row.Lat,
		"lng":                row.Lng,
		"is_metro":           row.IsMetro,
		"is_remote":          row.IsRemote,
		"delivery_available": row.DeliveryAvailable,
		"assembly_available": row.AssemblyAvailable,
		"lead_time_days":     row.LeadTimeDays,
		"rate_card_id":       row.RateCardID,
		"notes":              row.Notes,
	}
	if err := s.repo.UpdateZone(ctx, id, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "postcode already configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update postcode zone")
	}
	return s.GetZone(ctx, id)
}

func (s *service) DeleteZone(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteZone(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete postcode zone")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "postcode zone not found")
	}
	return nil
}

func (s *service) Lookup(ctx context.Context, postcode string) (*Eligibility, error) {
	zone, card, assembly, err := s.resolve(ctx, postcode)
	if err != nil {
		return nil, err
	}
	out := &Eligibility{
		Postcode:                 zone.Postcode,
		Suburb:                   zone.Suburb,
		State:                    zone.State,
		DeliveryAvailable:        zone.DeliveryAvailable,
		AssemblyAvailable:        zone.AssemblyAvailable,
		LeadTimeDays:             s.leadTime(zone),
		IsMetro:                  zone.IsMetro,
		IsRemote:                 zone.IsRemote,
		AssemblySurchargePercent: decimal.Zero,
		DeliverySurchargePercent: decimal.Zero,
	}
	if card != nil {
		dto := rateCardDTO(*card)
		out.RateCard = &dto
	}
	if assembly != nil {
		name := assembly.Name
		out.AssemblyZone = &name
		out.AssemblySurchargePercent = assembly.AssemblySurchargePercent
		out.DeliverySurchargePercent = assembly.DeliverySurchargePercent
	}
	return out, nil
}

func (s *service) EstimateDelivery(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if req.ItemCount < 0 || req.Subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_count and subtotal must not be negative")
	}
	zone, card, assembly, err := s.resolve(ctx, req.Postcode)
	if err != nil {
		return nil, err
	}
	lead := s.leadTime(zone)
	out := &Estimate{
		Postcode:              zone.Postcode,
		DeliveryAvailable:     zone.DeliveryAvailable,
		AssemblyAvailable:     zone.AssemblyAvailable,
		DeliveryFee:           decimal.Zero,
		AssemblySurcharge:     decimal.Zero,
		LeadTimeDays:          lead,
		EstimatedDeliveryDate: s.now().AddDate(0, 0, lead).Truncate(24 * time.Hour),
	}
	if !zone.DeliveryAvailable || card == nil {
		return out, nil
	}

	fee := card.BaseDeliveryFee.Add(card.PerItemFee.Mul(decimal.NewFromInt(int64(req.ItemCount))))
	switch {
	case zone.IsRemote:
		fee = fee.Mul(card.RemoteMultiplier)
	case zone.IsMetro:
		fee = fee.Mul(card.MetroMultiplier)
	}
	if assembly != nil && assembly.DeliverySurchargePercent.IsPositive() {
		fee = fee.Add(fee.Mul(assembly.DeliverySurchargePercent).Div(hundred))
	}
	if card.MinOrderValue.IsPositive() && req.Subtotal.GreaterThanOrEqual(card.MinOrderValue) {
		fee = decimal.Zero
		out.DeliveryWaived = true
	}
	out.DeliveryFee = fee.Round(2)

	if req.IncludeAssembly && zone.AssemblyAvailable {
		pct := card.AssemblyRatePercent
		if assembly != nil {
			pct = pct.Add(assembly.AssemblySurchargePercent)
		}
		out.AssemblySurcharge = req.Subtotal.Mul(pct).Div(hundred).Round(2)
	}
	return out, nil
}

// resolve loads the postcode with its effective rate card (assigned or
// default) and active assembly zone.
func (s *service) resolve(ctx context.Context, postcode string) (*models.PostcodeZone, *models.RateCard, *models.AssemblySurchargeZone, error) {
	code := strings.TrimSpace(postcode)
	if !s.postcode.MatchString(code) {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid postcode").
			WithDetails(map[string]string{"postcode": code})
	}
	zone, err := s.repo.FindZoneByPostcode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "postcode not serviced")
		}
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load postcode zone")
	}

	var card *models.RateCard
	if zone.RateCardID != nil {
		assigned, err := s.repo.FindRateCard(ctx, *zone.RateCardID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rate card")
		}
		if assigned != nil && assigned.IsActive {
			card = assigned
		}
	}
	if card == nil {
		fallback, err := s.repo.DefaultRateCard(ctx)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default rate card")
		}
		card = fallback
	}

	var assembly *models.AssemblySurchargeZone
	if zone.AssemblyZoneID != nil {
		found, err := s.repo.FindAssemblyZone(ctx, *zone.AssemblyZoneID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load assembly zone")
		}
		if found != nil && found.IsActive {
			assembly = found
		}
	}
	return zone, card, assembly, nil
}

func (s *service) leadTime(zone *models.PostcodeZone) int {
	if zone.LeadTimeDays > 0 {
		return zone.LeadTimeDays
	}
	return s.defaultLeadTime
}

func (s *service) validateZone(ctx context.Context, input PostcodeZoneInput) error {
	details := map[string]string{}
	if !s.postcode.MatchString(strings.TrimSpace(input.Postcode)) {
		details["postcode"] = "invalid format"
	}
	if strings.TrimSpace(input.Suburb) == "" {
		details["suburb"] = "required"
	}
	if strings.TrimSpace(input.State) == "" {
		details["state"] = "required"
	}
	if input.IsMetro && input.IsRemote {
		details["is_remote"] = "a postcode cannot be both metro and remote"
	}
	if input.LeadTimeDays != nil && *input.LeadTimeDays < 0 {
		details["lead_time_days"] = "must be >= 0"
	}
	if (input.Lat == nil) != (input.Lng == nil) {
		details["lat"] = "lat and lng must be provided together"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid postcode zone").WithDetails(details)
	}
	if input.RateCardID != nil {
		if _, err := s.repo.FindRateCard(ctx, *input.RateCardID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "rate card not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rate card")
		}
	}
	return nil
}

func (s *service) applyZone(row *models.PostcodeZone, input PostcodeZoneInput) {
	row.Postcode = strings.TrimSpace(input.Postcode)
	row.Suburb = strings.TrimSpace(input.Suburb)
	row.State = strings.ToUpper(strings.TrimSpace(input.State))
	row.Lat = input.Lat
	row.Lng = input.Lng
	row.IsMetro = input.IsMetro
	row.IsRemote = input.IsRemote
	row.DeliveryAvailable = input.DeliveryAvailable == nil || *input.DeliveryAvailable
	row.AssemblyAvailable = input.AssemblyAvailable
	row.LeadTimeDays = s.defaultLeadTime
	if input.LeadTimeDays != nil {
		row.LeadTimeDays = *input.LeadTimeDays
	}
	row.RateCardID = input.RateCardID
	row.Notes = input.Notes
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
}
