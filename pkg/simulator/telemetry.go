// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"math"
	"time"
)

// startTelemetry begins streaming debug frames. Called with s.mu held.
func (s *Simulator) startTelemetry() {
	if s.telemetryHz <= 0 || s.telemetryStop != nil {
		return
	}
	stop := make(chan struct{})
	s.telemetryStop = stop
	period := time.Duration(float64(time.Second) / s.telemetryHz)
	go s.telemetryLoop(stop, period)
}

// stopTelemetry ends the stream. Called with s.mu held.
func (s *Simulator) stopTelemetry() {
	if s.telemetryStop == nil {
		return
	}
	close(s.telemetryStop)
	s.telemetryStop = nil
}

func (s *Simulator) telemetryLoop(stop chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.telemetryStop != stop {
			s.mu.Unlock()
			return
		}
		s.simulateSensors(period.Seconds())
		err := s.send(s.debug.Message())
		s.mu.Unlock()

		if err != nil {
			s.log.Debug().Err(err).Msg("Telemetry not sent")
		}
	}
}

// simulateSensors drifts the attitude, position and altitude along a sum of
// slow sinusoids with a little noise
func (s *Simulator) simulateSensors(dt float64) {
	s.clock += dt
	t := s.clock
	n := func() float64 { return float64(s.noise()) }
	d := &s.debug

	d.Roll += float32(math.Sin(0.53*t)/240 + math.Sin(t)/190 + math.Sin(5*t)/210 + math.Sin(2*t+1)/310)
	d.Pitch += float32(math.Sin(0.48*t)/330 + math.Sin(1.2*t)/220 + math.Sin(4*t)/320 + math.Sin(3*t+1)/410)
	d.Yaw += float32(math.Sin(0.24*t)/190 + math.Sin(0.6*t+n())/50 + math.Sin(5*t+n())/90)

	d.Latitude += float32(math.Sin(0.1*t)/250000 + math.Sin(0.38*t)/300000 + math.Sin(2*t)/340000 + n()/1e6)
	d.Longitude += float32(math.Sin(0.22*t)/260000 + math.Sin(0.8*t)/330000 + math.Sin(2.1*t)/350000 + n()/1e6)

	d.RelativeAltitude += float32(math.Sin(0.74*t)/50 + math.Sin(0.8*t+n())/10 + math.Sin(5*t+n())/70)
	d.AbsoluteAltitude = s.baseAltitude + d.RelativeAltitude
	d.VerticalVelocity = 1
	d.Velocity += float32(math.Sin(0.44*t)/120 + math.Sin(0.9*t+n())/20 + math.Sin(t+1)/110)
	d.UsedThrottle = 0
	d.DistanceToBase = 2
}
