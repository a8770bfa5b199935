package iridiumsbd

import (
	"encoding/hex"
	"time"
)

// Synthetic geodetic/identity constants every emitted SBDMessage
// carries; this emulator never computes real position, so the fields
// that would normally carry it are fixed values.
const (
	sbdSerial          = 206899
	sbdLatitude        = 50.2563
	sbdLongitude       = 82.2532
	sbdCEP             = 122
	sbdIMEI            = "300534062390910"
	sbdDeviceType      = "ROCKBLOCK"
	transmitTimeFormat = "06-01-02 15:04:05"
)

// SBDMessage is the event payload published once per successful
// session. Field names match the fixed wire shape, snake_case,
// including the JWT's own claim set.
type SBDMessage struct {
	MOMSN        uint16  `json:"momsn"`
	Data         string  `json:"data"`
	Serial       int     `json:"serial"`
	Latitude     float64 `json:"iridium_latitude"`
	Longitude    float64 `json:"iridium_longitude"`
	CEP          int     `json:"iridium_cep"`
	IMEI         string  `json:"imei"`
	DeviceType   string  `json:"device_type"`
	TransmitTime string  `json:"transmit_time"`
	JWT          string  `json:"JWT"`
}

// buildSBDMessage assembles the fixed-field claim set for a successful
// session and signs it, returning the complete event payload.
func buildSBDMessage(sg signerLike, momsn uint16, payload []byte, now time.Time) (SBDMessage, error) {
	msg := SBDMessage{
		MOMSN:        momsn,
		Data:         hex.EncodeToString(payload),
		Serial:       sbdSerial,
		Latitude:     sbdLatitude,
		Longitude:    sbdLongitude,
		CEP:          sbdCEP,
		IMEI:         sbdIMEI,
		DeviceType:   sbdDeviceType,
		TransmitTime: now.UTC().Format(transmitTimeFormat),
	}

	token, err := sg.Sign(map[string]any{
		"momsn":             msg.MOMSN,
		"data":              msg.Data,
		"serial":            msg.Serial,
		"iridium_latitude":  msg.Latitude,
		"iridium_longitude": msg.Longitude,
		"iridium_cep":       msg.CEP,
		"imei":              msg.IMEI,
		"device_type":       msg.DeviceType,
		"transmit_time":     msg.TransmitTime,
	})
	if err != nil {
		return SBDMessage{}, wrapErr("sign sbd message", err)
	}
	msg.JWT = token
	return msg, nil
}

// signerLike is the narrow slice of *signer.Signer this file needs,
// kept local so sbdmessage.go doesn't have to import the signer
// package just for a function type.
type signerLike interface {
	Sign(claims map[string]any) (string, error)
}
