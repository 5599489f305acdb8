// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"encoding/binary"
	"fmt"
)

// Command identifies a signal exchange or a segmented payload type
type Command int32

// Signal commands
const (
	CmdDummy                   Command = 0
	CmdStart                   Command = 100007
	CmdAppLoop                 Command = 100008
	CmdFlightLoop              Command = 100009
	CmdCalibrateAccel          Command = 100010
	CmdCalibrateMagnet         Command = 100011
	CmdCalibrateESC            Command = 100012
	CmdUploadSettings          Command = 100013
	CmdDownloadSettings        Command = 100014
	CmdCalibrateRadio          Command = 100015
	CmdCheckRadio              Command = 100016
	CmdSoftwareUpgrade         Command = 100017
	CmdSystemReset             Command = 100018
	CmdUploadRoute             Command = 100019
	CmdDownloadRoute           Command = 100020
	CmdConfigureWiFi           Command = 100021
	CmdSensorsLogger           Command = 100022
	CmdPingValue               Command = 100023
	CmdCalibrationSettings     Command = 100024
	CmdCalibrationSettingsData Command = 100025
	CmdControlSettings         Command = 100026
	CmdControlSettingsData     Command = 100027
	CmdRouteContainer          Command = 100028
	CmdRouteContainerData      Command = 100029
	CmdWiFiConfiguration       Command = 100030
	CmdWiFiConfigurationData   Command = 100031
	CmdWhoAmIValue             Command = 100032
	CmdProtocolVersionValue    Command = 100033
	CmdProtocolVersion         Command = 100034
)

var commandNames = map[Command]string{
	CmdDummy:                   "DUMMY",
	CmdStart:                   "START_CMD",
	CmdAppLoop:                 "APP_LOOP",
	CmdFlightLoop:              "FLIGHT_LOOP",
	CmdCalibrateAccel:          "CALIBRATE_ACCEL",
	CmdCalibrateMagnet:         "CALIBRATE_MAGNET",
	CmdCalibrateESC:            "CALIBRATE_ESC",
	CmdUploadSettings:          "UPLOAD_SETTINGS",
	CmdDownloadSettings:        "DOWNLOAD_SETTINGS",
	CmdCalibrateRadio:          "CALIBRATE_RADIO",
	CmdCheckRadio:              "CHECK_RADIO",
	CmdSoftwareUpgrade:         "SOFTWARE_UPGRADE",
	CmdSystemReset:             "SYSTEM_RESET",
	CmdUploadRoute:             "UPLOAD_ROUTE",
	CmdDownloadRoute:           "DOWNLOAD_ROUTE",
	CmdConfigureWiFi:           "CONFIGURE_WIFI",
	CmdSensorsLogger:           "SENSORS_LOGGER",
	CmdPingValue:               "PING_VALUE",
	CmdCalibrationSettings:     "CALIBRATION_SETTINGS",
	CmdCalibrationSettingsData: "CALIBRATION_SETTINGS_DATA",
	CmdControlSettings:         "CONTROL_SETTINGS",
	CmdControlSettingsData:     "CONTROL_SETTINGS_DATA",
	CmdRouteContainer:          "ROUTE_CONTAINER",
	CmdRouteContainerData:      "ROUTE_CONTAINER_DATA",
	CmdWiFiConfiguration:       "WIFI_CONFIGURATION",
	CmdWiFiConfigurationData:   "WIFI_CONFIGURATION_DATA",
	CmdWhoAmIValue:             "WHO_AM_I_VALUE",
	CmdProtocolVersionValue:    "PROTOCOL_VERSION_VALUE",
	CmdProtocolVersion:         "PROTOCOL_VERSION",
}

// String returns the wire name of the command
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(c))
}

// Known reports whether the command is part of the protocol
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// HasPayload reports whether signal frames with this command carry a data chunk
func (c Command) HasPayload() bool {
	switch c {
	case CmdCalibrationSettingsData, CmdControlSettingsData, CmdRouteContainerData, CmdWiFiConfigurationData:
		return true
	default:
		return false
	}
}

// Parameter is the second field of a signal frame
type Parameter int32

// Signal parameters
const (
	ParamDummy              Parameter = 0
	ParamStart              Parameter = 1000011
	ParamAck                Parameter = 1000012
	ParamDataAck            Parameter = 1000013
	ParamEnterDFU           Parameter = 1000014
	ParamBreak              Parameter = 1000015
	ParamBreakAck           Parameter = 1000016
	ParamBreakFail          Parameter = 1000017
	ParamDone               Parameter = 1000018
	ParamReady              Parameter = 1000019
	ParamFail               Parameter = 1000020
	ParamSkip               Parameter = 1000021
	ParamNonStatic          Parameter = 1000022
	ParamNotAllowed         Parameter = 1000023
	ParamDataInvalid        Parameter = 1000024
	ParamTimeout            Parameter = 1000025
	ParamViaRouteAllowed    Parameter = 1000026
	ParamViaRouteNotAllowed Parameter = 1000027
)

var parameterNames = map[Parameter]string{
	ParamDummy:              "DUMMY",
	ParamStart:              "START",
	ParamAck:                "ACK",
	ParamDataAck:            "DATA_ACK",
	ParamEnterDFU:           "ENTER_DFU",
	ParamBreak:              "BREAK",
	ParamBreakAck:           "BREAK_ACK",
	ParamBreakFail:          "BREAK_FAIL",
	ParamDone:               "DONE",
	ParamReady:              "READY",
	ParamFail:               "FAIL",
	ParamSkip:               "SKIP",
	ParamNonStatic:          "NON_STATIC",
	ParamNotAllowed:         "NOT_ALLOWED",
	ParamDataInvalid:        "DATA_INVALID",
	ParamTimeout:            "TIMEOUT",
	ParamViaRouteAllowed:    "VIA_ROUTE_ALLOWED",
	ParamViaRouteNotAllowed: "VIA_ROUTE_NOT_ALLOWED",
}

// String returns the wire name of the parameter
func (p Parameter) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("VALUE(%d)", int32(p))
}

// Known reports whether the parameter is one of the named protocol values
func (p Parameter) Known() bool {
	_, ok := parameterNames[p]
	return ok
}

// SignalData is the structured view of a signal frame: a command and a
// parameter. Value-carrying commands (PING_VALUE, PROTOCOL_VERSION_VALUE,
// WHO_AM_I_VALUE) use Parameter as a raw integer.
type SignalData struct {
	Command   Command
	Parameter Parameter
}

// NewSignal builds a signal with a named parameter
func NewSignal(cmd Command, param Parameter) SignalData {
	return SignalData{Command: cmd, Parameter: param}
}

// NewValueSignal builds a signal carrying a raw integer value
func NewValueSignal(cmd Command, value int32) SignalData {
	return SignalData{Command: cmd, Parameter: Parameter(value)}
}

// Value returns the parameter as a raw integer
func (s SignalData) Value() int32 {
	return int32(s.Parameter)
}

// Message encodes the signal into a SIGNAL frame
func (s SignalData) Message() *Message {
	payload := make([]byte, SignalPayloadSize)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(s.Command))
	binary.LittleEndian.PutUint32(payload[4:8], uint32(s.Parameter))
	return NewMessage(TypeSignal, payload)
}

// Matches reports whether the signal has the given command and parameter
func (s SignalData) Matches(cmd Command, param Parameter) bool {
	return s.Command == cmd && s.Parameter == param
}

// String formats the signal for logs
func (s SignalData) String() string {
	switch s.Command {
	case CmdPingValue, CmdProtocolVersionValue, CmdWhoAmIValue:
		return fmt.Sprintf("%s(%d)", s.Command, s.Value())
	}
	return fmt.Sprintf("%s:%s", s.Command, s.Parameter)
}

// ParseSignal decodes the command and parameter of a SIGNAL frame. For data
// chunks the parameter holds the packed chunk count and index.
func ParseSignal(m *Message) (SignalData, error) {
	if m.Type() != TypeSignal {
		return SignalData{}, fmt.Errorf("not a signal message: %s", m.Type())
	}
	p := m.Payload()
	if len(p) < SignalConstraintSize {
		return SignalData{}, fmt.Errorf("signal payload too short: %d bytes", len(p))
	}
	return SignalData{
		Command:   Command(int32(binary.LittleEndian.Uint32(p[0:4]))),
		Parameter: Parameter(int32(binary.LittleEndian.Uint32(p[4:8]))),
	}, nil
}

// commandOf decodes the leading command id of a signal payload
func commandOf(payload []byte) Command {
	return Command(int32(binary.LittleEndian.Uint32(payload[0:SignalCommandSize])))
}
