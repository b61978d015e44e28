package shipping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tealeg/xlsx"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

const zoneSheetName = "postcode_zones"

var zoneColumns = []string{
	"postcode",
	"suburb",
	"state",
	"lat",
	"lng",
	"is_metro",
	"is_remote",
	"delivery_available",
	"assembly_available",
	"lead_time_days",
	"notes",
}

// Import upserts postcode zones from the first sheet of an XLSX workbook,
// keyed by postcode. Rows that fail validation are reported and skipped.
func (s *service) Import(ctx context.Context, r io.ReaderAt, size int64) (*ImportResult, error) {
	book, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable spreadsheet")
	}
	if len(book.Sheets) == 0 || len(book.Sheets[0].Rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet is empty")
	}
	sheet := book.Sheets[0]

	index := map[string]int{}
	for i, cell := range sheet.Rows[0].Cells {
		index[strings.ToLower(strings.TrimSpace(cell.String()))] = i
	}
	for _, required := range []string{"postcode", "suburb", "state"} {
		if _, ok := index[required]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing column "+required)
		}
	}

	result := &ImportResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i, row := range sheet.Rows[1:] {
			line := i + 2
			if row == nil || rowBlank(row) {
				result.Skipped++
				continue
			}
			get := func(name string) string {
				pos, ok := index[name]
				if !ok || pos >= len(row.Cells) {
					return ""
				}
				return strings.TrimSpace(row.Cells[pos].String())
			}

			input, err := parseZoneRow(get)
			if err == nil {
				err = s.validateZoneRow(input)
			}
			if err != nil {
				result.Errors = append(result.Errors, RowError{Row: line, Message: err.Error()})
				continue
			}

			existing, err := repo.FindZoneByPostcode(ctx, input.Postcode)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				zone := &models.PostcodeZone{ID: uuid.New()}
				s.applyZone(zone, input)
				if err := repo.CreateZone(ctx, zone); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import postcode zone")
				}
				result.Created++
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load postcode zone")
			default:
				input.RateCardID = existing.RateCardID
				s.applyZone(existing, input)
				if err := repo.UpdateZone(ctx, existing.ID, map[string]any{
					"suburb":             existing.Suburb,
					"state":              existing.State,
					"lat":                existing.Lat,
					"lng":                existing.Lng,
					"is_metro":           existing.IsMetro,
					"is_remote":          existing.IsRemote,
					"delivery_available": existing.DeliveryAvailable,
					"assembly_available": existing.AssemblyAvailable,
					"lead_time_days":     existing.LeadTimeDays,
					"notes":              existing.Notes,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import postcode zone")
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"created": result.Created,
			"updated": result.Updated,
			"errors":  len(result.Errors),
		}), "postcode zones imported")
	}
	return result, nil
}

// Export writes every postcode zone in the import layout plus the assembly
// assignment source.
func (s *service) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.repo.AllZones(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load postcode zones")
	}

	book := xlsx.NewFile()
	sheet, err := book.AddSheet(zoneSheetName)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sheet")
	}
	header := sheet.AddRow()
	for _, name := range append(append([]string{}, zoneColumns...), "assembly_zone_source") {
		header.AddCell().SetValue(name)
	}
	for _, zone := range rows {
		row := sheet.AddRow()
		row.AddCell().SetValue(zone.Postcode)
		row.AddCell().SetValue(zone.Suburb)
		row.AddCell().SetValue(zone.State)
		row.AddCell().SetValue(formatCoord(zone.Lat))
		row.AddCell().SetValue(formatCoord(zone.Lng))
		row.AddCell().SetValue(strconv.FormatBool(zone.IsMetro))
		row.AddCell().SetValue(strconv.FormatBool(zone.IsRemote))
		row.AddCell().SetValue(strconv.FormatBool(zone.DeliveryAvailable))
		row.AddCell().SetValue(strconv.FormatBool(zone.AssemblyAvailable))
		row.AddCell().SetValue(strconv.Itoa(zone.LeadTimeDays))
		notes := ""
		if zone.Notes != nil {
			notes = *zone.Notes
		}
		row.AddCell().SetValue(notes)
		source := ""
		if zone.AssemblyZoneSource != nil {
			source = zone.AssemblyZoneSource.String()
		}
		row.AddCell().SetValue(source)
	}
	if err := book.Write(w); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write spreadsheet")
	}
	return nil
}

func (s *service) validateZoneRow(input PostcodeZoneInput) error {
	err := s.validateZone(context.Background(), input)
	if err == nil {
		return nil
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || len(details) == 0 {
		return err
	}
	parts := make([]string, 0, len(details))
	for _, field := range zoneColumns {
		if msg, ok := details[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

func parseZoneRow(get func(string) string) (PostcodeZoneInput, error) {
	input := PostcodeZoneInput{
		Postcode: get("postcode"),
		Suburb:   get("suburb"),
		State:    get("state"),
	}
	var err error
	if input.Lat, err = parseCoord(get("lat")); err != nil {
		return input, fmt.Errorf("lat: %w", err)
	}
	if input.Lng, err = parseCoord(get("lng")); err != nil {
		return input, fmt.Errorf("lng: %w", err)
	}
	if input.IsMetro, err = parseFlag(get("is_metro"), false); err != nil {
		return input, fmt.Errorf("is_metro: %w", err)
	}
	if input.IsRemote, err = parseFlag(get("is_remote"), false); err != nil {
		return input, fmt.Errorf("is_remote: %w", err)
	}
	delivery, err := parseFlag(get("delivery_available"), true)
	if err != nil {
		return input, fmt.Errorf("delivery_available: %w", err)
	}
	input.DeliveryAvailable = &delivery
	if input.AssemblyAvailable, err = parseFlag(get("assembly_available"), false); err != nil {
		return input, fmt.Errorf("assembly_available: %w", err)
	}
	if raw := get("lead_time_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return input, fmt.Errorf("lead_time_days: not a whole number")
		}
		input.LeadTimeDays = &days
	}
	if notes := get("notes"); notes != "" {
		input.Notes = &notes
	}
	return input, nil
}

func parseCoord(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New("not a number")
	}
	return &v, nil
}

func parseFlag(raw string, fallback bool) (bool, error) {
	switch strings.ToLower(raw) {
	case "":
		return fallback, nil
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("unrecognised value %q", raw)
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func rowBlank(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if cell != nil && strings.TrimSpace(cell.String()) != "" {
			return false
		}
	}
	return true
}
