// Package deviceattrs validates and normalizes the device-specific attribute
// bag stored on evidence items.
//
// The registry is a closed, static table keyed by device type. Normalization
// is a pure function: it never consults storage and can be used directly by
// form handlers and serializers.
package deviceattrs

import (
	"sort"

	"forensicvault/pkg/domain"
)

// Kind describes how a field's value is stored.
type Kind int

const (
	// KindText fields are stored as trimmed, non-empty strings.
	KindText Kind = iota
	// KindFlag fields are stored as true when present and non-empty.
	KindFlag
)

func (k Kind) String() string {
	if k == KindFlag {
		return "flag"
	}
	return "text"
}

// Field is one legal flat attribute of a device type.
type Field struct {
	Name string
	Kind Kind
}

// SIMCardsKey holds the normalized SIM sub-records of a device.
const SIMCardsKey = "sim_cards"

// SIM sub-record columns paired with the parallel-array input key each is read from.
var simColumns = []struct {
	input string
	field string
}{
	{"sim_iccid", "iccid"},
	{"sim_imsi", "imsi"},
	{"sim_phone_number", "phone_number"},
	{"sim_carrier", "carrier"},
	{"sim_type", "sim_type"},
	{"sim_pin_status", "pin_status"},
	{"sim_notes", "notes"},
}

func text(names ...string) []Field {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: n, Kind: KindText})
	}
	return out
}

var videoFields = text("video_source_type", "camera_location", "video_format", "resolution",
	"duration", "frame_rate", "date_diff_value", "time_diff_value")

var registry = map[domain.DeviceType][]Field{
	domain.DeviceComputer: append(text("computer_type", "os_type", "os_version", "cpu", "ram",
		"storage_type", "storage_capacity", "encryption_status"),
		Field{Name: "write_blocker_used", Kind: KindFlag}),
	domain.DeviceMobile: text("os_type", "os_version", "mobile_os_type", "mobile_os_version",
		"sim_status", "lock_status", "battery_level"),
	domain.DeviceStorage: append(text("storage_device_type", "capacity", "connection_interface",
		"filesystem", "encryption_status"),
		Field{Name: "write_blocker_used", Kind: KindFlag}),
	domain.DeviceNetwork: text("network_device_type", "network_ip_address", "subnet_mask", "admin_access_method"),
	domain.DeviceCloud:   text("service_provider", "account_identifier", "legal_authority", "access_method"),
	domain.DeviceDrone:   text("drone_storage_type", "controller_serial"),
	domain.DeviceGaming:  text("console_type", "account_username"),
	domain.DeviceCar:     text("vehicle_make", "vehicle_model", "vehicle_year", "vin_number", "license_plate", "odometer"),
	domain.DeviceIoT:     text("iot_device_type", "network_type"),
	domain.DeviceMemory:  text("memory_type", "system_state", "memory_size", "acquisition_duration"),
	domain.DeviceVideo:   videoFields,
	domain.DeviceDVRNVR:  append(append([]Field(nil), videoFields...), text("storage_capacity")...),
	domain.DeviceOther:   nil,
}

// device types that accept SIM sub-records.
var simCapable = map[domain.DeviceType]bool{
	domain.DeviceMobile: true,
}

var union = buildUnion()

func buildUnion() map[string]Kind {
	out := make(map[string]Kind)
	for _, fields := range registry {
		for _, f := range fields {
			out[f.Name] = f.Kind
		}
	}
	return out
}

// Fields returns the legal flat fields for a device type in registry order.
// Unknown device types have no fields.
func Fields(deviceType domain.DeviceType) []Field {
	return append([]Field(nil), registry[deviceType]...)
}

// KnownField reports whether name is a flat field of any device type.
func KnownField(name string) bool {
	_, ok := union[name]
	return ok
}

// AllFields returns the union of all device-type field names, sorted.
func AllFields() []string {
	names := make([]string, 0, len(union))
	for name := range union {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AcceptsSIMCards reports whether the device type may carry SIM sub-records.
func AcceptsSIMCards(deviceType domain.DeviceType) bool {
	return simCapable[deviceType]
}

func ownField(deviceType domain.DeviceType, name string) (Kind, bool) {
	for _, f := range registry[deviceType] {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return KindText, false
}
