package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/northcraft/cabinetry-backend/api/responses"
	"github.com/northcraft/cabinetry-backend/api/validators"
	"github.com/northcraft/cabinetry-backend/internal/catalog"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
)

// CatalogKind selects one of the catalog reference tables.
type CatalogKind string

const (
	CatalogCabinetTypes      CatalogKind = "cabinet-types"
	CatalogDoorStyles        CatalogKind = "door-styles"
	CatalogColors            CatalogKind = "colors"
	CatalogFinishes          CatalogKind = "finishes"
	CatalogProductionOptions CatalogKind = "production-options"
)

// CatalogKinds lists every catalog table exposed over HTTP.
var CatalogKinds = []CatalogKind{
	CatalogCabinetTypes,
	CatalogDoorStyles,
	CatalogColors,
	CatalogFinishes,
	CatalogProductionOptions,
}

func unknownKind(kind CatalogKind) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "unknown catalog table "+string(kind))
}

func listCatalog(ctx context.Context, svc catalog.Service, kind CatalogKind, includeInactive bool) (any, error) {
	switch kind {
	case CatalogCabinetTypes:
		return svc.ListCabinetTypes(ctx, includeInactive)
	case CatalogDoorStyles:
		return svc.ListDoorStyles(ctx, includeInactive)
	case CatalogColors:
		return svc.ListColors(ctx, includeInactive)
	case CatalogFinishes:
		return svc.ListFinishes(ctx, includeInactive)
	case CatalogProductionOptions:
		return svc.ListProductionOptions(ctx, includeInactive)
	}
	return nil, unknownKind(kind)
}

// CatalogList serves the active catalog to anonymous shoppers.
func CatalogList(svc catalog.Service, kind CatalogKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		items, err := listCatalog(r.Context(), svc, kind, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// CatalogCabinetType returns one cabinet type with its dimension limits.
func CatalogCabinetType(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetCabinetType(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdminCatalogList includes inactive rows unless include_inactive=false.
func AdminCatalogList(svc catalog.Service, kind CatalogKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		includeInactive := true
		flag, err := validators.ParseQueryBool(r, "include_inactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if flag != nil {
			includeInactive = *flag
		}
		items, err := listCatalog(r.Context(), svc, kind, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func AdminCatalogCreate(svc catalog.Service, kind CatalogKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		item, err := saveCatalog(r, svc, kind, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func AdminCatalogUpdate(svc catalog.Service, kind CatalogKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := saveCatalog(r, svc, kind, &id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// saveCatalog decodes the body for the table and creates a row, or updates
// the row when id is set.
func saveCatalog(r *http.Request, svc catalog.Service, kind CatalogKind, id *uuid.UUID) (any, error) {
	ctx := r.Context()
	switch kind {
	case CatalogCabinetTypes:
		var input catalog.CabinetTypeInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		if id == nil {
			return svc.CreateCabinetType(ctx, input)
		}
		return svc.UpdateCabinetType(ctx, *id, input)
	case CatalogProductionOptions:
		var input catalog.ProductionOptionInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		if id == nil {
			return svc.CreateProductionOption(ctx, input)
		}
		return svc.UpdateProductionOption(ctx, *id, input)
	case CatalogDoorStyles, CatalogColors, CatalogFinishes:
		var input catalog.RateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		return saveRate(ctx, svc, kind, id, input)
	}
	return nil, unknownKind(kind)
}

func saveRate(ctx context.Context, svc catalog.Service, kind CatalogKind, id *uuid.UUID, input catalog.RateInput) (*catalog.RateDTO, error) {
	switch {
	case kind == CatalogDoorStyles && id == nil:
		return svc.CreateDoorStyle(ctx, input)
	case kind == CatalogDoorStyles:
		return svc.UpdateDoorStyle(ctx, *id, input)
	case kind == CatalogColors && id == nil:
		return svc.CreateColor(ctx, input)
	case kind == CatalogColors:
		return svc.UpdateColor(ctx, *id, input)
	case kind == CatalogFinishes && id == nil:
		return svc.CreateFinish(ctx, input)
	default:
		return svc.UpdateFinish(ctx, *id, input)
	}
}

func AdminCatalogDelete(svc catalog.Service, kind CatalogKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch kind {
		case CatalogCabinetTypes:
			err = svc.DeleteCabinetType(r.Context(), id)
		case CatalogDoorStyles:
			err = svc.DeleteDoorStyle(r.Context(), id)
		case CatalogColors:
			err = svc.DeleteColor(r.Context(), id)
		case CatalogFinishes:
			err = svc.DeleteFinish(r.Context(), id)
		case CatalogProductionOptions:
			err = svc.DeleteProductionOption(r.Context(), id)
		default:
			err = unknownKind(kind)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
