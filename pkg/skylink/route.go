// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Route container layout
const (
	routeHeaderSize = 12
	WaypointSize    = 28
)

// Waypoint is one route point
type Waypoint struct {
	Latitude         float64 `toml:"latitude"`
	Longitude        float64 `toml:"longitude"`
	AbsoluteAltitude float32 `toml:"absolute_altitude"`
	RelativeAltitude float32 `toml:"relative_altitude"`
	Velocity         float32 `toml:"velocity"`
}

// String formats the waypoint
func (w Waypoint) String() string {
	return fmt.Sprintf("lat=%.7f lon=%.7f abs=%.1f rel=%.1f v=%.1f",
		w.Latitude, w.Longitude, w.AbsoluteAltitude, w.RelativeAltitude, w.Velocity)
}

type routeHeader struct {
	RouteSize    int32
	WaypointTime float32
	BaseTime     float32
}

// RouteContainer is the waypoint route flown in VIA_ROUTE mode. Its size
// depends on the number of waypoints.
type RouteContainer struct {
	WaypointTime float32    `toml:"waypoint_time"`
	BaseTime     float32    `toml:"base_time"`
	Waypoints    []Waypoint `toml:"waypoints"`
	CRC          uint32     `toml:"crc"`
}

// NewRouteContainer returns an empty route with default timings and a valid CRC
func NewRouteContainer(waypoints ...Waypoint) *RouteContainer {
	r := &RouteContainer{
		WaypointTime: 10,
		BaseTime:     20,
		Waypoints:    append([]Waypoint(nil), waypoints...),
	}
	r.SetCRC()
	return r
}

// DecodeRouteContainer parses a reassembled route. The route size field
// locates the CRC, so chunk padding after it is ignored.
func DecodeRouteContainer(data []byte) (*RouteContainer, error) {
	var h routeHeader
	if err := decodeRecord(data, &h); err != nil {
		return nil, err
	}
	if h.RouteSize < 0 {
		return nil, fmt.Errorf("invalid route size %d", h.RouteSize)
	}
	need := routeHeaderSize + int(h.RouteSize)*WaypointSize + crcFieldSize
	if len(data) < need {
		return nil, fmt.Errorf("route of %d waypoints needs %d bytes, got %d", h.RouteSize, need, len(data))
	}

	r := &RouteContainer{
		WaypointTime: h.WaypointTime,
		BaseTime:     h.BaseTime,
		Waypoints:    make([]Waypoint, h.RouteSize),
	}
	body := bytes.NewReader(data[routeHeaderSize:need])
	if err := binary.Read(body, binary.LittleEndian, r.Waypoints); err != nil {
		return nil, err
	}
	if err := binary.Read(body, binary.LittleEndian, &r.CRC); err != nil {
		return nil, err
	}
	return r, nil
}

// DataCommand implements SignalPayloadData
func (r *RouteContainer) DataCommand() Command { return CmdRouteContainer }

// DataType implements SignalPayloadData
func (r *RouteContainer) DataType() Command { return CmdRouteContainerData }

// Size returns the serialized size
func (r *RouteContainer) Size() int {
	return routeHeaderSize + len(r.Waypoints)*WaypointSize + crcFieldSize
}

// Serialize implements SignalPayloadData
func (r *RouteContainer) Serialize() []byte {
	out := make([]byte, 0, r.Size())
	out = append(out, encodeRecord(routeHeader{
		RouteSize:    int32(len(r.Waypoints)),
		WaypointTime: r.WaypointTime,
		BaseTime:     r.BaseTime,
	})...)
	out = append(out, encodeRecord(r.Waypoints)...)
	return append(out, encodeRecord(r.CRC)...)
}

// IsValid implements SignalPayloadData
func (r *RouteContainer) IsValid() bool {
	return r.CRC == recordCRC(r.Serialize())
}

// SetCRC recomputes the stored CRC after the route was changed
func (r *RouteContainer) SetCRC() {
	r.CRC = recordCRC(r.Serialize())
}

// AddWaypoint appends a waypoint; call SetCRC before sending
func (r *RouteContainer) AddWaypoint(w Waypoint) {
	r.Waypoints = append(r.Waypoints, w)
}

// String summarizes the route for logs
func (r *RouteContainer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RouteContainer{waypoints=%d waypoint_time=%.1f base_time=%.1f crc=0x%08X}",
		len(r.Waypoints), r.WaypointTime, r.BaseTime, r.CRC)
	for i, w := range r.Waypoints {
		fmt.Fprintf(&sb, "\n  #%d %s", i, w)
	}
	return sb.String()
}
