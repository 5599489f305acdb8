// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import "fmt"

// CalibrationSettingsSize is the serialized size of CalibrationSettings
const CalibrationSettingsSize = 188

// BoardType identifies the flight controller hardware
type BoardType int32

const (
	BoardUnknown    BoardType = 0
	BoardUltimateV5 BoardType = 5
	BoardBasicV2    BoardType = 102
	BoardBasicV3    BoardType = 103
	BoardProV1      BoardType = 201
)

// String returns the board name
func (b BoardType) String() string {
	switch b {
	case BoardUltimateV5:
		return "ULTIMATE_V5"
	case BoardBasicV2:
		return "BASIC_V2"
	case BoardBasicV3:
		return "BASIC_V3"
	case BoardProV1:
		return "PRO_V1"
	case BoardUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("BOARD(%d)", int32(b))
	}
}

// Calibration flag bits
const (
	CalibFlagGPSConnected         = 0
	CalibFlagExternalMagnetometer = 1
	CalibFlagBatteryMeasurement   = 2
)

// CalibrationSettings holds sensor calibration produced by the flight
// controller at connect time and after calibration procedures
type CalibrationSettings struct {
	GyroOffset         [3]float32  `toml:"gyro_offset"`
	AccelCalib         [9]float32  `toml:"accel_calib"`
	MagnetSoft         [9]float32  `toml:"magnet_soft"`
	MagnetHard         [3]float32  `toml:"magnet_hard"`
	AltimeterSetting   float32     `toml:"altimeter_setting"`
	TemperatureSetting float32     `toml:"temperature_setting"`
	RadioLevels        [16]float32 `toml:"radio_levels"`
	PWMInputLevels     [8]byte     `toml:"pwm_input_levels"`
	BoardType          BoardType   `toml:"board_type"`
	Flags              Flags       `toml:"flags"`
	CRC                uint32      `toml:"crc"`
}

// NewCalibrationSettings returns identity calibration with standard
// atmosphere settings and a valid CRC
func NewCalibrationSettings() *CalibrationSettings {
	c := &CalibrationSettings{
		AltimeterSetting:   1013.2,
		TemperatureSetting: 288.15,
		BoardType:          BoardUnknown,
	}
	c.AccelCalib[0], c.AccelCalib[4], c.AccelCalib[8] = 1, 1, 1
	c.MagnetSoft[0], c.MagnetSoft[4], c.MagnetSoft[8] = 1, 1, 1
	c.SetCRC()
	return c
}

// DecodeCalibrationSettings parses a reassembled calibration record
func DecodeCalibrationSettings(data []byte) (*CalibrationSettings, error) {
	c := &CalibrationSettings{}
	if err := decodeRecord(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DataCommand implements SignalPayloadData
func (c *CalibrationSettings) DataCommand() Command { return CmdCalibrationSettings }

// DataType implements SignalPayloadData
func (c *CalibrationSettings) DataType() Command { return CmdCalibrationSettingsData }

// Serialize implements SignalPayloadData
func (c *CalibrationSettings) Serialize() []byte { return encodeRecord(c) }

// IsValid implements SignalPayloadData
func (c *CalibrationSettings) IsValid() bool {
	return c.CRC == recordCRC(c.Serialize())
}

// SetCRC recomputes the stored CRC after fields were changed
func (c *CalibrationSettings) SetCRC() {
	c.CRC = recordCRC(c.Serialize())
}

// String summarizes the calibration for logs
func (c *CalibrationSettings) String() string {
	return fmt.Sprintf("CalibrationSettings{board=%s gyro=%v altimeter=%.1f temp=%.2f flags=0x%08X crc=0x%08X}",
		c.BoardType, c.GyroOffset, c.AltimeterSetting, c.TemperatureSetting, uint32(c.Flags), c.CRC)
}
