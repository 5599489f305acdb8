// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import "fmt"

// ControlSettingsSize is the serialized size of ControlSettings
const ControlSettingsSize = 172

// UAVType selects the airframe mixer
type UAVType int32

const (
	UAVTricopterRear    UAVType = 1000
	UAVTricopterFront   UAVType = 1500
	UAVQuadrocopterX    UAVType = 2000
	UAVQuadrocopterPlus UAVType = 2500
	UAVHexacopterX      UAVType = 3000
	UAVHexacopterPlus   UAVType = 3500
	UAVOctocopterX      UAVType = 4000
	UAVOctocopterPlus   UAVType = 4500
)

// Throttle modes
const (
	ThrottleStatic   int32 = 10
	ThrottleDynamic  int32 = 20
	ThrottleRate     int32 = 30
	ThrottleAltitude int32 = 40
)

// Stick movement modes
const (
	StickCopter     int32 = 0
	StickGeographic int32 = 1
	StickBasePoint  int32 = 2
)

// Battery types (cell count, 0 undefined)
const (
	BatteryUndefined int32 = 0
	Battery2S        int32 = 2
	Battery3S        int32 = 3
	Battery4S        int32 = 4
	Battery5S        int32 = 5
	Battery6S        int32 = 6
)

// ESC PWM frequencies
const (
	ESCSlow       int32 = 100
	ESCMedium     int32 = 200
	ESCFast       int32 = 300
	ESCVeryFast   int32 = 400
	ESCOneshot125 int32 = 3200
)

// Control settings flag bits
const (
	ControlFlagFlightLogger         = 0
	ControlFlagDynamicAutopilot     = 1
	ControlFlagGPSSensorPositionSet = 2
)

// ControlSettings holds controller tuning exchanged before a flight and via
// upload/download
type ControlSettings struct {
	UAVType            UAVType `toml:"uav_type"`
	InitialSolverMode  int32   `toml:"initial_solver_mode"`
	ManualThrottleMode int32   `toml:"manual_throttle_mode"`

	AutoLandingDescendRate   float32 `toml:"auto_landing_descend_rate"`
	MaxAutoLandingTime       float32 `toml:"max_auto_landing_time"`
	MaxRollPitchControlValue float32 `toml:"max_roll_pitch_control_value"`
	MaxYawControlValue       float32 `toml:"max_yaw_control_value"`

	PIDRollRate  [3]float32 `toml:"pid_roll_rate"`
	PIDPitchRate [3]float32 `toml:"pid_pitch_rate"`
	PIDYawRate   [3]float32 `toml:"pid_yaw_rate"`

	RollProp  float32 `toml:"roll_prop"`
	PitchProp float32 `toml:"pitch_prop"`
	YawProp   float32 `toml:"yaw_prop"`

	MaxVerticalAutoVelocity float32    `toml:"max_vertical_auto_velocity"`
	AltPositionProp         float32    `toml:"alt_position_prop"`
	AltVelocityProp         float32    `toml:"alt_velocity_prop"`
	PIDThrottleAccel        [3]float32 `toml:"pid_throttle_accel"`
	ThrottleAltRateProp     float32    `toml:"throttle_alt_rate_prop"`

	MaxAutoAngle     float32    `toml:"max_auto_angle"`
	MaxAutoVelocity  float32    `toml:"max_auto_velocity"`
	AutoPositionProp float32    `toml:"auto_position_prop"`
	AutoVelocityProp float32    `toml:"auto_velocity_prop"`
	PIDAutoAccel     [3]float32 `toml:"pid_auto_accel"`

	StickPositionRateProp float32 `toml:"stick_position_rate_prop"`
	StickMovementMode     int32   `toml:"stick_movement_mode"`
	BatteryType           int32   `toml:"battery_type"`
	ErrorHandlingAction   int32   `toml:"error_handling_action"`
	ESCPWMFreq            int32   `toml:"esc_pwm_freq"`

	GPSSensorPosition [3]float32 `toml:"gps_sensor_position"`

	Flags Flags  `toml:"flags"`
	CRC   uint32 `toml:"crc"`
}

// NewControlSettings returns the factory defaults with a valid CRC
func NewControlSettings() *ControlSettings {
	c := &ControlSettings{
		UAVType:             UAVQuadrocopterX,
		InitialSolverMode:   int32(SolverAngleNoYaw),
		ManualThrottleMode:  ThrottleDynamic,
		StickMovementMode:   StickCopter,
		BatteryType:         BatteryUndefined,
		ErrorHandlingAction: int32(ControllerAutolanding),
		ESCPWMFreq:          ESCMedium,
	}
	c.SetCRC()
	return c
}

// DecodeControlSettings parses a reassembled control settings record
func DecodeControlSettings(data []byte) (*ControlSettings, error) {
	c := &ControlSettings{}
	if err := decodeRecord(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DataCommand implements SignalPayloadData
func (c *ControlSettings) DataCommand() Command { return CmdControlSettings }

// DataType implements SignalPayloadData
func (c *ControlSettings) DataType() Command { return CmdControlSettingsData }

// Serialize implements SignalPayloadData
func (c *ControlSettings) Serialize() []byte { return encodeRecord(c) }

// IsValid implements SignalPayloadData
func (c *ControlSettings) IsValid() bool {
	return c.CRC == recordCRC(c.Serialize())
}

// SetCRC recomputes the stored CRC after fields were changed
func (c *ControlSettings) SetCRC() {
	c.CRC = recordCRC(c.Serialize())
}

// String summarizes the settings for logs
func (c *ControlSettings) String() string {
	return fmt.Sprintf("ControlSettings{uav=%d solver=%d throttle=%d battery=%d esc=%d crc=0x%08X}",
		c.UAVType, c.InitialSolverMode, c.ManualThrottleMode, c.BatteryType, c.ESCPWMFreq, c.CRC)
}
