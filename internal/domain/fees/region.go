package fees

import (
	"strings"

	"rentspace/internal/domain/shared/money"
)

// Region is the tax/fee jurisdiction a booking is priced under.
type Region string

const (
	RegionFrance     Region = "FRANCE"
	RegionQuebec     Region = "QC"
	RegionOntario    Region = "ON"
	RegionBC         Region = "BC"
	RegionAlberta    Region = "AB"
	RegionAtlantic   Region = "ATLANTIC"
	RegionCanadaRest Region = "CA_OTHER"
	RegionCADDefault Region = "CAD_DEFAULT"
)

// Regions lists every jurisdiction in declaration order.
func Regions() []Region {
	return []Region{
		RegionFrance,
		RegionQuebec,
		RegionOntario,
		RegionBC,
		RegionAlberta,
		RegionAtlantic,
		RegionCanadaRest,
		RegionCADDefault,
	}
}

func (r Region) Validate() error {
	switch r {
	case RegionFrance, RegionQuebec, RegionOntario, RegionBC, RegionAlberta,
		RegionAtlantic, RegionCanadaRest, RegionCADDefault:
		return nil
	default:
		return &ValidationError{Field: "region", Reason: "unknown region " + string(r)}
	}
}

// RegionInput carries the location facts of a listing.
type RegionInput struct {
	Currency     money.Currency
	Country      string
	ProvinceCode string
}

const countryCanada = "CA"

// InferRegion resolves the fee jurisdiction. A Canadian CAD booking without a
// province is rejected rather than guessed, since the province decides the tax.
func InferRegion(in RegionInput) (Region, error) {
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	province := strings.ToUpper(strings.TrimSpace(in.ProvinceCode))

	switch in.Currency {
	case money.EUR:
		return RegionFrance, nil
	case money.CAD:
		if country != countryCanada {
			return RegionCADDefault, nil
		}
		if province == "" {
			return "", ErrProvinceRequired
		}
		return provinceRegion(province)
	default:
		return "", &ValidationError{Field: "currency", Reason: "fees are not supported for " + string(in.Currency)}
	}
}

func provinceRegion(code string) (Region, error) {
	switch code {
	case "QC":
		return RegionQuebec, nil
	case "ON":
		return RegionOntario, nil
	case "BC":
		return RegionBC, nil
	case "AB":
		return RegionAlberta, nil
	case "NB", "NS", "NL", "PE":
		return RegionAtlantic, nil
	case "MB", "SK", "YT", "NT", "NU":
		return RegionCanadaRest, nil
	default:
		return "", &ValidationError{Field: "province", Reason: "unknown Canadian province " + code}
	}
}
