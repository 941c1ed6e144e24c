// normalizer/normalizer.go
package normalizer

import (
	"sort"
	"strconv"
	"strings"
)

// aliases maps lower-cased vendor keys to canonical column names.
var aliases = map[string]string{
	"deviceid":           "device_id",
	"ndeviceid":          "device_id",
	"idcollar":           "device_id",
	"collarserialnumber": "device_id",

	"recdatetime":     "acquisition_date",
	"acquisitiontime": "acquisition_date",

	"mainv":         "main_voltage",
	"mainvoltage":   "main_voltage",
	"battvoltage":   "main_voltage",
	"bkupv":         "backup_voltage",
	"backupvoltage": "backup_voltage",

	"altitude": "elevation",
	"height":   "elevation",

	"idposition": "vendor_record_id",
	"timeid":     "vendor_record_id",

	"lat": "latitude",
	"lon": "longitude",
	"lng": "longitude",
}

// Record is a normalized vendor record.
type Record struct {
	// Fields holds canonical keys plus every unmapped field under its
	// lower-cased key.
	Fields map[string]any
	// Raw is the vendor record with lower-cased keys, stored verbatim.
	Raw map[string]any
	// Geometry is POINT(lon lat) WKT, empty when either coordinate is missing.
	Geometry string
}

// Normalize lower-cases keys, renames known vendor aliases and derives the
// point geometry. Values are never altered and no record is rejected.
// When keys differ only by case, the one sorting last wins.
func Normalize(raw map[string]any) Record {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lowered := make(map[string]any, len(raw))
	for _, k := range keys {
		lowered[strings.ToLower(k)] = raw[k]
	}

	fields := make(map[string]any, len(lowered))
	for k, v := range lowered {
		fields[k] = v
	}
	// Alias renames run in sorted order so collisions resolve the same way
	// every time. A canonical key already present keeps its value and the
	// alias stays under its own name.
	lkeys := make([]string, 0, len(lowered))
	for k := range lowered {
		lkeys = append(lkeys, k)
	}
	sort.Strings(lkeys)
	for _, k := range lkeys {
		canonical, ok := aliases[k]
		if !ok {
			continue
		}
		if _, taken := fields[canonical]; taken {
			continue
		}
		fields[canonical] = fields[k]
		delete(fields, k)
	}

	return Record{
		Fields:   fields,
		Raw:      lowered,
		Geometry: PointWKT(fields["latitude"], fields["longitude"]),
	}
}

// PointWKT returns POINT(lon lat) or "" when either value is missing or
// not numeric. Whole numbers keep one decimal place.
func PointWKT(lat, lon any) string {
	la, ok := toFloat(lat)
	if !ok {
		return ""
	}
	lo, ok := toFloat(lon)
	if !ok {
		return ""
	}
	return "POINT(" + formatCoord(lo) + " " + formatCoord(la) + ")"
}

func formatCoord(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
