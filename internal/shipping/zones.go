package shipping

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

const defaultGeocodeBatch = 50

func (s *service) ListAssemblyZones(ctx context.Context) ([]AssemblyZoneDTO, error) {
	rows, err := s.repo.ListAssemblyZones(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list assembly zones")
	}
	out := make([]AssemblyZoneDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, assemblyZoneDTO(row))
	}
	return out, nil
}

func (s *service) CreateAssemblyZone(ctx context.Context, input AssemblyZoneInput) (*AssemblyZoneDTO, error) {
	row := &models.AssemblySurchargeZone{ID: uuid.New()}
	return s.saveAssemblyZone(ctx, row, input)
}

func (s *service) UpdateAssemblyZone(ctx context.Context, id uuid.UUID, input AssemblyZoneInput) (*AssemblyZoneDTO, error) {
	row, err := s.repo.FindAssemblyZone(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "assembly zone")
	}
	return s.saveAssemblyZone(ctx, row, input)
}

func (s *service) saveAssemblyZone(ctx context.Context, row *models.AssemblySurchargeZone, input AssemblyZoneInput) (*AssemblyZoneDTO, error) {
	details := map[string]string{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	if input.CenterLat < -90 || input.CenterLat > 90 {
		details["center_lat"] = "out of range"
	}
	if input.CenterLng < -180 || input.CenterLng > 180 {
		details["center_lng"] = "out of range"
	}
	if input.RadiusKM <= 0 {
		details["radius_km"] = "must be positive"
	}
	if input.AssemblySurchargePercent.IsNegative() || input.AssemblySurchargePercent.GreaterThan(hundred) {
		details["assembly_surcharge_percent"] = "must be between 0 and 100"
	}
	if input.DeliverySurchargePercent.IsNegative() || input.DeliverySurchargePercent.GreaterThan(hundred) {
		details["delivery_surcharge_percent"] = "must be between 0 and 100"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid assembly zone").WithDetails(details)
	}

	row.Name = strings.TrimSpace(input.Name)
	row.CenterLat = input.CenterLat
	row.CenterLng = input.CenterLng
	row.RadiusKM = input.RadiusKM
	row.AssemblySurchargePercent = input.AssemblySurchargePercent.Round(2)
	row.DeliverySurchargePercent = input.DeliverySurchargePercent.Round(2)
	row.IsActive = input.IsActive == nil || *input.IsActive

	if err := s.repo.SaveAssemblyZone(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "assembly zone name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save assembly zone")
	}
	dto := assemblyZoneDTO(*row)
	return &dto, nil
}

func (s *service) DeleteAssemblyZone(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindAssemblyZone(ctx, id); err != nil {
			return notFoundOr(err, "assembly zone")
		}
		if err := repo.DetachAssemblyZone(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detach assembly zone")
		}
		if err := repo.DeleteAssemblyZone(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete assembly zone")
		}
		return nil
	})
}

func (s *service) PreviewRadius(ctx context.Context, zoneID uuid.UUID) (*RadiusPreview, error) {
	zone, err := s.repo.FindAssemblyZone(ctx, zoneID)
	if err != nil {
		return nil, notFoundOr(err, "assembly zone")
	}
	postcodes, err := s.repo.ZonesWithCoordinates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load postcodes")
	}

	preview := &RadiusPreview{ZoneID: zone.ID, RadiusKM: zone.RadiusKM, Candidates: []RadiusCandidate{}, Outside: []uuid.UUID{}}
	for _, pc := range postcodes {
		inside, distance := WithinRadius(zone.CenterLat, zone.CenterLng, zone.RadiusKM, *pc.Lat, *pc.Lng)
		if !inside {
			if assignedByRadius(pc, zone.ID) {
				preview.Outside = append(preview.Outside, pc.ID)
			}
			continue
		}
		manual := isManual(pc)
		preview.Candidates = append(preview.Candidates, RadiusCandidate{
			PostcodeZoneID: pc.ID,
			Postcode:       pc.Postcode,
			Suburb:         pc.Suburb,
			DistanceKM:     distance,
			CurrentZoneID:  pc.AssemblyZoneID,
			CurrentSource:  pc.AssemblyZoneSource,
			WouldChange:    !manual && !assignedByRadius(pc, zone.ID),
			ManualLocked:   manual,
		})
	}

	unplotted, err := s.repo.RadiusAssignedWithoutCoordinates(ctx, zone.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load unplotted postcodes")
	}
	for _, pc := range unplotted {
		preview.Outside = append(preview.Outside, pc.ID)
	}
	return preview, nil
}

// ApplyRadius assigns every in-radius postcode to the zone unless an admin
// pinned it manually, and releases radius assignments that fell outside or
// whose postcode lost its coordinates.
func (s *service) ApplyRadius(ctx context.Context, zoneID uuid.UUID, overwriteManual bool) (*ApplyResult, error) {
	result := &ApplyResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		zone, err := repo.FindAssemblyZone(ctx, zoneID)
		if err != nil {
			return notFoundOr(err, "assembly zone")
		}
		if !zone.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assembly zone is inactive")
		}
		postcodes, err := repo.ZonesWithCoordinates(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load postcodes")
		}

		radius := enums.AssemblyZoneSourceRadius
		for _, pc := range postcodes {
			inside, _ := WithinRadius(zone.CenterLat, zone.CenterLng, zone.RadiusKM, *pc.Lat, *pc.Lng)
			switch {
			case inside && isManual(pc) && !overwriteManual:
				result.SkippedManual++
			case inside && assignedByRadius(pc, zone.ID):
				// unchanged
			case inside:
				if err := repo.UpdateZone(ctx, pc.ID, map[string]any{
					"assembly_zone_id":     zone.ID,
					"assembly_zone_source": radius,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign postcode")
				}
				result.Assigned++
			case assignedByRadius(pc, zone.ID):
				if err := repo.UpdateZone(ctx, pc.ID, map[string]any{
					"assembly_zone_id":     nil,
					"assembly_zone_source": nil,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear postcode")
				}
				result.Cleared++
			}
		}

		unplotted, err := repo.RadiusAssignedWithoutCoordinates(ctx, zone.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load unplotted postcodes")
		}
		for _, pc := range unplotted {
			if err := repo.UpdateZone(ctx, pc.ID, map[string]any{
				"assembly_zone_id":     nil,
				"assembly_zone_source": nil,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear postcode")
			}
			result.Cleared++
		}

		now := s.now()
		zone.LastAppliedAt = &now
		if err := repo.SaveAssemblyZone(ctx, zone); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp assembly zone")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"assembly_zone_id": zoneID.String(),
			"assigned":         result.Assigned,
			"cleared":          result.Cleared,
			"skipped_manual":   result.SkippedManual,
		})
		s.logg.Info(logCtx, "assembly radius applied")
	}
	return result, nil
}

func (s *service) AssignZoneManually(ctx context.Context, postcodeZoneID uuid.UUID, assemblyZoneID *uuid.UUID) (*PostcodeZoneDTO, error) {
	if _, err := s.repo.FindZone(ctx, postcodeZoneID); err != nil {
		return nil, notFoundOr(err, "postcode zone")
	}
	if assemblyZoneID != nil {
		if _, err := s.repo.FindAssemblyZone(ctx, *assemblyZoneID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "assembly zone not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load assembly zone")
		}
	}
	manual := enums.AssemblyZoneSourceManual
	if err := s.repo.UpdateZone(ctx, postcodeZoneID, map[string]any{
		"assembly_zone_id":     assemblyZoneID,
		"assembly_zone_source": manual,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign assembly zone")
	}
	return s.GetZone(ctx, postcodeZoneID)
}

func (s *service) ClearManual(ctx context.Context, postcodeZoneID uuid.UUID) (*PostcodeZoneDTO, error) {
	row, err := s.repo.FindZone(ctx, postcodeZoneID)
	if err != nil {
		return nil, notFoundOr(err, "postcode zone")
	}
	if !isManual(*row) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "postcode has no manual assignment")
	}
	if err := s.repo.UpdateZone(ctx, postcodeZoneID, map[string]any{
		"assembly_zone_id":     nil,
		"assembly_zone_source": nil,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear manual assignment")
	}
	return s.GetZone(ctx, postcodeZoneID)
}

func (s *service) Geocode(ctx context.Context, id uuid.UUID) (*PostcodeZoneDTO, error) {
	if s.geocoder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geocoding unavailable")
	}
	row, err := s.repo.FindZone(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "postcode zone")
	}
	if err := s.geocodeOne(ctx, row); err != nil {
		return nil, err
	}
	return s.GetZone(ctx, id)
}

// GeocodeMissing resolves coordinates for postcodes that have none. Individual
// failures are reported, not fatal.
func (s *service) GeocodeMissing(ctx context.Context, limit int) (*GeocodeResult, error) {
	if s.geocoder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geocoding unavailable")
	}
	if limit <= 0 || limit > 500 {
		limit = defaultGeocodeBatch
	}
	rows, err := s.repo.ZonesMissingCoordinates(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load postcodes")
	}

	result := &GeocodeResult{}
	var errs error
	for i := range rows {
		if err := s.geocodeOne(ctx, &rows[i]); err != nil {
			result.Failed = append(result.Failed, rows[i].Postcode)
			errs = multierr.Append(errs, err)
			continue
		}
		result.Updated++
	}
	if errs != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", errs.Error()), "some postcodes failed to geocode")
	}
	return result, nil
}

func (s *service) geocodeOne(ctx context.Context, row *models.PostcodeZone) error {
	res, err := s.geocoder.GeocodePostcode(ctx, row.Postcode)
	if err != nil {
		return err
	}
	lat, lng := res.Location.Latitude, res.Location.Longitude
	updates := map[string]any{"lat": lat, "lng": lng}
	if strings.TrimSpace(row.Suburb) == "" && res.Suburb != "" {
		updates["suburb"] = res.Suburb
	}
	if strings.TrimSpace(row.State) == "" && res.State != "" {
		updates["state"] = res.State
	}
	if err := s.repo.UpdateZone(ctx, row.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store coordinates")
	}
	return nil
}

func isManual(pc models.PostcodeZone) bool {
	return pc.AssemblyZoneSource != nil && *pc.AssemblyZoneSource == enums.AssemblyZoneSourceManual
}

func assignedByRadius(pc models.PostcodeZone, zoneID uuid.UUID) bool {
	return pc.AssemblyZoneID != nil && *pc.AssemblyZoneID == zoneID &&
		pc.AssemblyZoneSource != nil && *pc.AssemblyZoneSource == enums.AssemblyZoneSourceRadius
}
