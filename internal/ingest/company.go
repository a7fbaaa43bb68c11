package ingest

import (
	"encoding/json"
	"time"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// Organization forms that place an entity in the public sector.
var publicSectorForms = map[string]bool{
	"KOMM": true,
	"FYLK": true,
	"STAT": true,
	"ORGL": true,
	"SF":   true,
	"KF":   true,
	"FKF":  true,
}

// CompanyFromPayload derives master data from a raw register payload. The
// provider has shipped several response shapes over time, so every field is
// looked up under all the key names seen in the wild and missing fields stay
// empty rather than failing the ingest.
func CompanyFromPayload(orgnr string, payload []byte, fetchedAt time.Time) model.Company {
	c := model.Company{Orgnr: orgnr, LastFetchAt: &fetchedAt}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return c
	}

	c.Name = firstString(root, "name", "companyName", "legalName")
	c.Website = firstString(root, "website", "homePage", "homepage")
	c.NACE = naceCode(root)
	c.SectorCode = firstString(root, "sectorCode", "institutionalSectorCode")
	c.Municipality = municipality(root)

	form := firstString(root, "companyType", "organisationForm", "organizationForm", "orgForm")
	c.IsPublicSector = publicSectorForms[form]

	return c
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		// Some shapes nest the value as {"code": "..."} or {"name": "..."}.
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err == nil {
			if s := firstString(obj, "code", "name", "value"); s != "" {
				return s
			}
		}
	}
	return ""
}

func naceCode(root map[string]json.RawMessage) string {
	if s := firstString(root, "naceCode", "industryCode"); s != "" {
		return s
	}
	// List shape: "naceCategories": [{"code": "62.010", ...}, ...]
	for _, key := range []string{"naceCategories", "industries"} {
		raw, ok := root[key]
		if !ok {
			continue
		}
		var list []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			continue
		}
		for _, entry := range list {
			if s := firstString(entry, "code"); s != "" {
				return s
			}
		}
	}
	return ""
}

func municipality(root map[string]json.RawMessage) string {
	for _, key := range []string{"postalAddress", "businessAddress", "visitingAddress", "location"} {
		raw, ok := root[key]
		if !ok {
			continue
		}
		var addr map[string]json.RawMessage
		if err := json.Unmarshal(raw, &addr); err != nil {
			continue
		}
		if s := firstString(addr, "municipality", "municipalityName"); s != "" {
			return s
		}
	}
	return firstString(root, "municipality")
}
