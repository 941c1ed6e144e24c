// models/ats.go
package models

// ATSDeviceReading is a row of the "download all data points" export.
type ATSDeviceReading struct {
	CollarSerialNumber string `csv:"CollarSerialNumber"`
	Year               string `csv:"Year"`
	Julianday          string `csv:"Julianday"`
	Hour               string `csv:"Hour"`
	Minute             string `csv:"Minute"`
	Activity           string `csv:"Activity"`
	Temperature        string `csv:"Temperature"`
	Latitude           string `csv:"Latitude"`
	Longitude          string `csv:"Longitude"`
	HDOP               string `csv:"HDOP"`
	NumSats            string `csv:"NumSats"`
	FixTime            string `csv:"FixTime"`
	Dimension          string `csv:"2D/3D"`
	Date               string `csv:"Date"`
}

// ATSTransmission is a row of the "download all transmissions" export.
type ATSTransmission struct {
	CollarSerialNumber string `csv:"CollarSerialNumber"`
	Date               string `csv:"Date"`
	NumberFixes        string `csv:"NumberFixes"`
	BattVoltage        string `csv:"BattVoltage"`
	Mortality          string `csv:"Mortality"`
	BreakOff           string `csv:"BreakOff"`
	GpsOnTime          string `csv:"GpsOnTime"`
	SatOnTime          string `csv:"SatOnTime"`
	SatErrors          string `csv:"SatErrors"`
	GmtOffset          string `csv:"GmtOffset"`
	LowBatt            string `csv:"LowBatt"`
	Event              string `csv:"Event"`
	Latitude           string `csv:"Latitude"`
	Longitude          string `csv:"Longitude"`
	CEPRadiusKm        string `csv:"CEPradius_km"`
}
