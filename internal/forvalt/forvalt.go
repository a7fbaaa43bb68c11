// Package forvalt imports Proff Forvalt spreadsheet exports. The exports are
// wide: one row per company, with financial columns suffixed by fiscal year
// ("Driftsres., 2024"). Rows become company master data plus facts with the
// same account codes the provider API would have delivered.
package forvalt

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/store"
)

// SheetFirmainfo is the company sheet name in every Forvalt export.
const SheetFirmainfo = "Proff Forvalt - Firmainfo"

// columnToCode maps the year-suffixed financial column prefixes to account
// codes, matching what the provider API delivers for the same line items.
var columnToCode = map[string]string{
	"Sum driftsinnt.":           "SDI",
	"Driftsres.":                "DR",
	"Sum eiend.":                "SED",
	"Sum egenkap.":              "SEK",
	"Kasse/bank/post":           "KBP",
	"Avskr. varige driftsmidl.": "AVS",
}

var yearSuffix = regexp.MustCompile(`^(.*?),\s*(\d{4})$`)

// publicSectorForms lists the Org.form values that mark an entity as public
// sector.
var publicSectorForms = map[string]bool{
	"KOMM": true,
	"FYLK": true,
	"STAT": true,
	"ORGL": true,
	"SF":   true,
	"KF":   true,
	"FKF":  true,
}

// Stats summarizes one import.
type Stats struct {
	Companies   int
	Facts       int
	SkippedRows int
}

// Importer loads Forvalt exports into the store.
type Importer struct {
	Store *store.Store
}

// Import reads the Firmainfo sheet of one export file and upserts companies
// and facts. Rows without a valid organization number are skipped and
// counted; they never abort the file.
func (im *Importer) Import(ctx context.Context, path string) (Stats, error) {
	log := zap.L().With(zap.String("component", "forvalt"), zap.String("file", path))

	var stats Stats

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return stats, eris.Wrapf(err, "forvalt: open %s", path)
	}
	sheet, ok := f.Sheet[SheetFirmainfo]
	if !ok {
		return stats, eris.Errorf("forvalt: sheet %q not found in %s", SheetFirmainfo, path)
	}

	rows := sheetRows(sheet)
	if len(rows) == 0 {
		log.Warn("sheet has no data rows")
		return stats, nil
	}

	fetchedAt := time.Now().UTC()
	var facts []model.Fact
	for _, row := range rows {
		orgnr := model.NormalizeOrgnr(row["Orgnr"])
		if orgnr == "" {
			stats.SkippedRows++
			continue
		}

		if err := im.Store.UpsertCompany(ctx, rowCompany(orgnr, row, fetchedAt)); err != nil {
			return stats, err
		}
		stats.Companies++

		facts = append(facts, rowFacts(orgnr, row, fetchedAt)...)
	}

	n, err := im.Store.UpsertFacts(ctx, facts)
	if err != nil {
		return stats, err
	}
	stats.Facts = int(n)

	log.Info("forvalt import finished",
		zap.Int("companies", stats.Companies),
		zap.Int("facts", stats.Facts),
		zap.Int("skipped_rows", stats.SkippedRows))
	return stats, nil
}

// sheetRows reads the sheet into header-keyed maps, dropping blank lines.
func sheetRows(sheet *xlsx.Sheet) []map[string]string {
	if len(sheet.Rows) < 2 {
		return nil
	}

	headers := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		headers[i] = strings.TrimSpace(cell.String())
	}

	var out []map[string]string
	for _, row := range sheet.Rows[1:] {
		m := make(map[string]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			v := strings.TrimSpace(cell.String())
			m[headers[i]] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, m)
		}
	}
	return out
}

func rowCompany(orgnr string, row map[string]string, fetchedAt time.Time) model.Company {
	name := row["Juridisk selskapsnavn"]
	if name == "" {
		name = row["Markedsnavn"]
	}

	return model.Company{
		Orgnr:          orgnr,
		Name:           name,
		NACE:           row["NACE-bransjekode"],
		Municipality:   row["Kommune"],
		Website:        row["Internett"],
		IsPublicSector: publicSectorForms[row["Org.form"]],
		LastFetchAt:    &fetchedAt,
	}
}

// rowFacts collects the year-suffixed financial columns of one row. EBITDA is
// not exported directly; when both operating result and depreciation are
// present for a year it is derived as their sum.
func rowFacts(orgnr string, row map[string]string, fetchedAt time.Time) []model.Fact {
	byYear := map[int]map[string]float64{}
	for key, raw := range row {
		if raw == "" {
			continue
		}
		m := yearSuffix.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		code, ok := columnToCode[strings.TrimSpace(m[1])]
		if !ok {
			continue
		}
		year, err := strconv.Atoi(m[2])
		if err != nil || year < 1900 {
			continue
		}
		v, err := model.ParseAmount(raw)
		if err != nil {
			continue
		}
		if byYear[year] == nil {
			byYear[year] = map[string]float64{}
		}
		byYear[year][code] = v
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	var facts []model.Fact
	for _, year := range years {
		values := byYear[year]

		if ebit, ok := values["DR"]; ok {
			if depr, ok := values["AVS"]; ok {
				values["EBITDA"] = ebit + depr
			}
		}

		codes := make([]string, 0, len(values))
		for code := range values {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		for _, code := range codes {
			v := values[code]
			facts = append(facts, model.Fact{
				Orgnr:      orgnr,
				FiscalYear: year,
				View:       model.ViewCompany,
				Code:       code,
				Value:      &v,
				Currency:   "NOK",
				Source:     model.SourceForvaltExcel,
				FetchedAt:  fetchedAt,
			})
		}
	}
	return facts
}
