// vendors/ats_csv.go
package vendors

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/utils"
)

// ParseATSReadings decodes the "all data points" export.
func ParseATSReadings(reader io.Reader) ([]models.ATSDeviceReading, error) {
	var readings []models.ATSDeviceReading
	decoder, err := csvutil.NewDecoder(csv.NewReader(reader))
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder for ATS readings: %w", err)
	}
	if err := decoder.Decode(&readings); err != nil {
		return nil, fmt.Errorf("failed to decode ATS readings: %w", err)
	}
	return readings, nil
}

// ParseATSTransmissions decodes the "all transmissions" export.
func ParseATSTransmissions(reader io.Reader) ([]models.ATSTransmission, error) {
	var transmissions []models.ATSTransmission
	decoder, err := csvutil.NewDecoder(csv.NewReader(reader))
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder for ATS transmissions: %w", err)
	}
	if err := decoder.Decode(&transmissions); err != nil {
		return nil, fmt.Errorf("failed to decode ATS transmissions: %w", err)
	}
	return transmissions, nil
}

// ReadATSFiles parses an export pair from disk and merges it. skipped counts
// readings whose date could not be read.
func ReadATSFiles(readingsPath, transmissionsPath string) (records []models.RawRecord, skipped int, err error) {
	rf, err := os.Open(readingsPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", readingsPath, err)
	}
	defer rf.Close()
	readings, err := ParseATSReadings(rf)
	if err != nil {
		return nil, 0, err
	}

	tf, err := os.Open(transmissionsPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", transmissionsPath, err)
	}
	defer tf.Close()
	transmissions, err := ParseATSTransmissions(tf)
	if err != nil {
		return nil, 0, err
	}

	records, skipped = MergeATS(readings, transmissions)
	return records, skipped, nil
}

type timedTransmission struct {
	at time.Time
	tx models.ATSTransmission
}

// MergeATS joins each reading with the first transmission from the same
// collar on the same day that follows it, or the day's first transmission
// when none follows. Readings whose date cannot be read are counted in
// skipped. A reading with no transmission that day is kept on its own.
func MergeATS(readings []models.ATSDeviceReading, transmissions []models.ATSTransmission) (records []models.RawRecord, skipped int) {
	bySerial := map[string][]timedTransmission{}
	for _, tx := range transmissions {
		at, err := utils.ParseVendorTime(tx.Date)
		if err != nil {
			continue
		}
		serial := strings.TrimSpace(tx.CollarSerialNumber)
		bySerial[serial] = append(bySerial[serial], timedTransmission{at: at, tx: tx})
	}
	for _, list := range bySerial {
		sort.Slice(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })
	}

	for _, rd := range readings {
		at, err := readingTime(rd)
		if err != nil {
			skipped++
			continue
		}
		serial := strings.TrimSpace(rd.CollarSerialNumber)

		var match *timedTransmission
		for i, c := range bySerial[serial] {
			if !utils.SameDay(c.at, at) {
				continue
			}
			if match == nil {
				match = &bySerial[serial][i]
			}
			if c.at.After(at) {
				match = &bySerial[serial][i]
				break
			}
		}
		records = append(records, atsRecord(serial, at, rd, match))
	}
	return records, skipped
}

// readingTime combines the reading's calendar date with its Hour and
// Minute columns.
func readingTime(rd models.ATSDeviceReading) (time.Time, error) {
	day, err := utils.ParseVendorTime(rd.Date)
	if err != nil {
		return time.Time{}, err
	}
	hour, _ := strconv.Atoi(strings.TrimSpace(rd.Hour))
	minute, _ := strconv.Atoi(strings.TrimSpace(rd.Minute))
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC), nil
}

func atsRecord(serial string, at time.Time, rd models.ATSDeviceReading, match *timedTransmission) models.RawRecord {
	r := models.RawRecord{
		"CollarSerialNumber": serial,
		"Date":               at.Format(utils.VendorTimeLayout),
		"TimeID":             serial + "_" + at.Format(time.RFC3339),
		"Year":               rd.Year,
		"Julianday":          rd.Julianday,
		"Hour":               rd.Hour,
		"Minute":             rd.Minute,
		"Activity":           rd.Activity,
		"Temperature":        rd.Temperature,
		"Latitude":           rd.Latitude,
		"Longitude":          rd.Longitude,
		"HDOP":               rd.HDOP,
		"NumSats":            rd.NumSats,
		"FixTime":            rd.FixTime,
		"2D/3D":              rd.Dimension,
	}
	if match == nil {
		return r
	}
	tx := match.tx
	r["TransmissionDate"] = match.at.Format(utils.VendorTimeLayout)
	r["NumberFixes"] = tx.NumberFixes
	r["BattVoltage"] = tx.BattVoltage
	r["Mortality"] = !strings.EqualFold(strings.TrimSpace(tx.Mortality), "No")
	r["BreakOff"] = strings.EqualFold(strings.TrimSpace(tx.BreakOff), "Yes")
	r["GpsOnTime"] = tx.GpsOnTime
	r["SatOnTime"] = tx.SatOnTime
	r["SatErrors"] = tx.SatErrors
	r["GmtOffset"] = tx.GmtOffset
	r["LowBatt"] = !strings.EqualFold(strings.TrimSpace(tx.LowBatt), "No")
	r["Event"] = tx.Event
	r["TransmissionLatitude"] = tx.Latitude
	r["TransmissionLongitude"] = tx.Longitude
	r["CEPradius_km"] = tx.CEPRadiusKm
	return r
}

// filterWindow keeps records whose Date lies after w.Since and, when set,
// not after w.Until.
func filterWindow(records []models.RawRecord, w models.Window) []models.RawRecord {
	kept := records[:0]
	for _, r := range records {
		s, _ := r["Date"].(string)
		at, err := utils.ParseVendorTime(s)
		if err != nil {
			continue
		}
		if !at.After(w.Since) {
			continue
		}
		if !w.Until.IsZero() && at.After(w.Until) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
