// Package obd encodes diagnostic request frames and decodes the raw
// payloads of response and broadcast frames into typed telemetry values.
package obd

import (
	"github.com/brutella/can"
)

// Module is a vehicle control unit, addressed by its extended OBD2 CAN ID.
type Module uint32

const (
	ModuleAll Module = 0x18DB33F1
	ModuleECM Module = 0x18DA10F1 // Engine Control Module
	ModuleTCM Module = 0x18DA18F1 // Transmission Control Module
	ModuleBCM Module = 0x18DA40F1 // Body Control Module
)

// Service is the OBD2 service class of a request.
type Service uint8

const (
	ServiceCurrentData          Service = 0x01
	ServiceTroubleCodes         Service = 0x03
	ServiceVehicleInfo          Service = 0x09
	ServiceManufacturerSpecific Service = 0x22
)

const fillerByte = 0xAA

// Modules echo the request service plus 0x40 in their responses.
const responseServiceOffset = 0x40

// Request builds the frame that asks module for one PID. One-byte PIDs
// occupy a single payload slot, two-byte PIDs occupy two.
func Request(module Module, service Service, pid uint16) can.Frame {
	f := can.Frame{
		ID:     uint32(module),
		Length: 8,
		Data:   [8]uint8{0, uint8(service), 0, fillerByte, fillerByte, fillerByte, fillerByte, fillerByte},
	}
	if pid > 0xFF {
		f.Data[0] = 3
		f.Data[2] = uint8(pid >> 8)
		f.Data[3] = uint8(pid)
	} else {
		f.Data[0] = 2
		f.Data[2] = uint8(pid)
	}
	return f
}

// IsModuleResponse reports whether a CAN ID belongs to a diagnostic
// module. Standard IDs live in 0x700-0x7FF, extended ones in 0x18xxxxxx.
func IsModuleResponse(id uint32) bool {
	isStandard := id >= 0x700 && id <= 0x7FF
	isExtended := id >= 0x18000000 && id <= 0x18FFFFFF
	return isStandard || isExtended
}

// Extended-addressed frames carry a two byte PID, standard ones a single byte.
func isExtendedID(id uint32) bool {
	return id > 0xFFF
}

// PID extracts the parameter ID from a diagnostic frame.
func PID(f can.Frame) uint16 {
	if isExtendedID(f.ID) {
		return uint16(f.Data[2])<<8 | uint16(f.Data[3])
	}
	return uint16(f.Data[2])
}

// ServiceOf extracts the service class from a diagnostic frame.
func ServiceOf(f can.Frame, received bool) Service {
	s := f.Data[1]
	if received {
		s -= responseServiceOffset
	}
	return Service(s)
}
