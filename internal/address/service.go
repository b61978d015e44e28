package address

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/maps"
)

// Service manages a customer's address book and Places lookups.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateAddressRequest) (*AddressDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, req UpdateAddressRequest) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error)
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	Resolve(ctx context.Context, req ResolveRequest) (*ResolvedAddress, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type placesClient interface {
	Autocomplete(ctx context.Context, input string) ([]maps.AutocompleteSuggestion, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.ResolvedAddress, error)
}

// ServiceParams wires the address service.
type ServiceParams struct {
	Repo     *Repository
	TxRunner txRunner
	Places   placesClient
	Shipping config.ShippingConfig
}

type service struct {
	repo           *Repository
	tx             txRunner
	places         placesClient
	postcode       *regexp.Regexp
	defaultCountry string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("address repository required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	country := strings.ToUpper(strings.TrimSpace(params.Shipping.DefaultCountry))
	if country == "" {
		country = "AU"
	}
	return &service{
		repo:           params.Repo,
		tx:             params.TxRunner,
		places:         params.Places,
		postcode:       params.Shipping.PostcodeRegexp(),
		defaultCountry: country,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error) {
	row, err := s.find(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*row)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateAddressRequest) (*AddressDTO, error) {
	postcode := strings.TrimSpace(req.Postcode)
	if !s.postcode.MatchString(postcode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid postcode").
			WithDetails(map[string]string{"postcode": postcode})
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		country = s.defaultCountry
	}

	row := &models.Address{
		ID:        uuid.New(),
		UserID:    userID,
		Label:     strings.TrimSpace(req.Label),
		Recipient: strings.TrimSpace(req.Recipient),
		Phone:     trimmed(req.Phone),
		Line1:     strings.TrimSpace(req.Line1),
		Line2:     trimmed(req.Line2),
		Suburb:    strings.TrimSpace(req.Suburb),
		State:     strings.ToUpper(strings.TrimSpace(req.State)),
		Postcode:  postcode,
		Country:   country,
		Lat:       req.Lat,
		Lng:       req.Lng,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		makeDefault := req.IsDefault || count == 0
		if makeDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		row.IsDefault = makeDefault
		return repo.Create(ctx, row)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
	}
	dto := FromModel(*row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, req UpdateAddressRequest) (*AddressDTO, error) {
	if _, err := s.find(ctx, s.repo, userID, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = strings.TrimSpace(*value)
		}
	}
	setString("label", req.Label)
	setString("recipient", req.Recipient)
	setString("line1", req.Line1)
	setString("suburb", req.Suburb)
	if req.State != nil {
		updates["state"] = strings.ToUpper(strings.TrimSpace(*req.State))
	}
	if req.Phone != nil {
		updates["phone"] = trimmed(req.Phone)
	}
	if req.Line2 != nil {
		updates["line2"] = trimmed(req.Line2)
	}
	if req.Postcode != nil {
		postcode := strings.TrimSpace(*req.Postcode)
		if !s.postcode.MatchString(postcode) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid postcode").
				WithDetails(map[string]string{"postcode": postcode})
		}
		updates["postcode"] = postcode
	}
	if req.Lat != nil {
		updates["lat"] = *req.Lat
	}
	if req.Lng != nil {
		updates["lng"] = *req.Lng
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
		}
	}
	return s.Get(ctx, userID, id)
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := s.find(ctx, repo, userID, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
		}
		if !row.IsDefault {
			return nil
		}
		next, err := repo.Oldest(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote default address")
		}
		return repo.MarkDefault(ctx, next.ID)
	})
}

func (s *service) SetDefault(ctx context.Context, userID, id uuid.UUID) (*AddressDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.find(ctx, repo, userID, id); err != nil {
			return err
		}
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
		}
		if err := repo.MarkDefault(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

func (s *service) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if s.places == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client unavailable")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}

	resp, err := s.places.Autocomplete(ctx, query)
	if err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0, len(resp))
	for _, item := range resp {
		suggestions = append(suggestions, Suggestion{PlaceID: item.PlaceID, Description: item.Description})
	}
	return suggestions, nil
}

func (s *service) Resolve(ctx context.Context, req ResolveRequest) (*ResolvedAddress, error) {
	if s.places == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(req.PlaceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place_id is required")
	}

	place, err := s.places.ResolvePlace(ctx, req.PlaceID)
	if err != nil {
		return nil, err
	}
	if place == nil || place.Line1 == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place has no street address")
	}

	out := &ResolvedAddress{
		Line1:    place.Line1,
		Suburb:   place.Suburb,
		State:    place.State,
		Postcode: place.Postcode,
		Country:  place.Country,
	}
	if out.Country == "" {
		out.Country = s.defaultCountry
	}
	if place.Location.Latitude != 0 || place.Location.Longitude != 0 {
		lat, lng := place.Location.Latitude, place.Location.Longitude
		out.Lat, out.Lng = &lat, &lng
	}
	return out, nil
}

func (s *service) find(ctx context.Context, repo *Repository, userID, id uuid.UUID) (*models.Address, error) {
	row, err := repo.FindForUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return row, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
