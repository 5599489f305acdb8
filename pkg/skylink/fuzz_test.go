// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package skylink

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomSignal builds a signal with a known non-data command
func randomSignal(rng *rand.Rand) SignalData {
	for {
		cmd := Command(100007 + rng.Intn(28))
		if cmd.Known() && !cmd.HasPayload() {
			return NewValueSignal(cmd, rng.Int31())
		}
	}
}

// ============================================================
// Dispatcher Fuzz Tests
// ============================================================

func TestFuzz_DispatcherRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDispatcher(DispatcherFunc(func(Event) {}))
	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(256))
		rng.Read(data)
		// bias towards marker and terminator bytes
		for j := range data {
			switch rng.Intn(8) {
			case 0:
				data[j] = 0
			case 1:
				data[j] = "$%^"[rng.Intn(3)]
			}
		}
		d.Feed(data)
	}
	t.Logf("successes=%d failures=%d", d.Successes(), d.Failures())
}

func TestFuzz_SignalRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		s := randomSignal(rng)
		c := &collector{}
		d := NewDispatcher(c)
		d.Feed(s.Message().Bytes())

		if len(c.events) != 1 {
			t.Fatalf("round %d: %s produced %d events", i, s, len(c.events))
		}
		got, ok := SignalOf(c.events[0])
		if !ok || got != s {
			t.Fatalf("round %d: expected %s, got %s", i, s, got)
		}
	}
}

func TestFuzz_CorruptedFrameNeverDelivered(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		s := randomSignal(rng)
		frame := s.Message().Bytes()
		// flip one bit in the parameter so framing is unchanged
		bit := rng.Intn(32)
		frame[PreambleSize+4+bit/8] ^= 1 << uint(bit%8)

		c := &collector{}
		d := NewDispatcher(c)
		d.Feed(frame)
		d.Feed(NewSignal(CmdStart, ParamAck).Message().Bytes())

		if len(c.events) != 1 || !MatchSignal(c.events[0], CmdStart, ParamAck) {
			t.Fatalf("round %d: unexpected events %v", i, c.events)
		}
		if d.Failures() != 1 {
			t.Fatalf("round %d: expected 1 failure, got %d", i, d.Failures())
		}
	}
}

func TestFuzz_RouteReassembly(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds() / 10

	for i := 0; i < rounds; i++ {
		r := NewRouteContainer()
		for n := rng.Intn(20); n > 0; n-- {
			r.AddWaypoint(Waypoint{
				Latitude:         rng.Float64()*180 - 90,
				Longitude:        rng.Float64()*360 - 180,
				AbsoluteAltitude: rng.Float32() * 1000,
				RelativeAltitude: rng.Float32() * 100,
				Velocity:         rng.Float32() * 15,
			})
		}
		r.SetCRC()

		msgs := BuildMessages(r)
		rng.Shuffle(len(msgs), func(a, b int) { msgs[a], msgs[b] = msgs[b], msgs[a] })

		c := &collector{}
		d := NewDispatcher(c)
		feedMessages(d, msgs)

		payloads := c.payloads()
		if len(payloads) != 1 {
			// random floats can form a preamble inside a chunk
			if d.Failures() > 0 {
				continue
			}
			t.Fatalf("round %d: expected 1 payload, got %d", i, len(payloads))
		}
		if !bytes.Equal(payloads[0].Data.Serialize(), r.Serialize()) || !payloads[0].Data.IsValid() {
			t.Fatalf("round %d: reassembled route differs", i)
		}
	}
}
