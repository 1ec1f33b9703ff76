package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CountryFallback is the geographic centre of Slovenia.
var CountryFallback = Coordinate{Lat: 46.1512, Lng: 14.9955}

var defaultCities = map[string]Coordinate{
	"Ljubljana":     {46.0569, 14.5058},
	"Maribor":       {46.5547, 15.6459},
	"Celje":         {46.2397, 15.2677},
	"Kranj":         {46.2389, 14.3556},
	"Koper":         {45.5481, 13.7302},
	"Novo Mesto":    {45.8030, 15.1689},
	"Velenje":       {46.3592, 15.1103},
	"Nova Gorica":   {45.9560, 13.6436},
	"Ptuj":          {46.4199, 15.8697},
	"Murska Sobota": {46.6625, 16.1664},
	"Bled":          {46.3683, 14.1146},
	"Piran":         {45.5283, 13.5683},
	"Izola":         {45.5397, 13.6604},
	"Portorož":      {45.5144, 13.5911},
	"Škofja Loka":   {46.1655, 14.3063},
	"Domžale":       {46.1382, 14.5936},
	"Kamnik":        {46.2259, 14.6121},
	"Jesenice":      {46.4367, 14.0526},
	"Trbovlje":      {46.1550, 15.0533},
	"Postojna":      {45.7743, 14.2153},
}

// NormalizeCity trims, lower-cases and collapses whitespace. Diacritics are
// folded as well, so "Škofja  Loka" and "skofja loka" share a key.
func NormalizeCity(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// CityTable is an immutable city -> coordinate lookup.
type CityTable struct {
	entries map[string]Coordinate
}

func NewCityTable(cities map[string]Coordinate) *CityTable {
	t := &CityTable{entries: make(map[string]Coordinate, len(cities))}
	for name, c := range cities {
		if key := NormalizeCity(name); key != "" {
			t.entries[key] = c
		}
	}
	return t
}

// DefaultCities returns the built-in Slovenian city table.
func DefaultCities() *CityTable {
	return NewCityTable(defaultCities)
}

func (t *CityTable) Lookup(name string) (Coordinate, bool) {
	if t == nil {
		return Coordinate{}, false
	}
	c, ok := t.entries[NormalizeCity(name)]
	return c, ok
}

func (t *CityTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Locate returns an event's position: its own coordinates when usable,
// otherwise the centre of its city.
func (t *CityTable) Locate(lat, lng *float64, city string) (Coordinate, bool) {
	if c, ok := FromPointers(lat, lng); ok {
		return c, true
	}
	return t.Lookup(city)
}
