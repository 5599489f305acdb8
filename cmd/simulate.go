// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/skylink/pkg/logging"
	"github.com/Thermoquad/skylink/pkg/settings"
	"github.com/Thermoquad/skylink/pkg/simulator"
	"github.com/Thermoquad/skylink/pkg/transport"
)

var (
	simListen        string
	simWSListen      string
	simTelemetryRate float64
	simDenyRoute     bool
	simDenyFlight    bool
	simProtocol      int32
	simSeed          int64
	simSettings      string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated flight controller",
	Long: `Answer the Skylink protocol like a flight controller would.

The simulator accepts ground station connections on a TCP port and, with
--ws-listen, on a WebSocket endpoint at /skylink. With --port it instead
answers on a serial port, e.g. one end of a virtual null-modem pair.

Each connection gets its own board with calibration, control settings, a
route and telemetry. --settings preloads the records from a file written by
"settings export".

Examples:
  skylink simulate --listen :5760
  skylink control --tcp localhost:5760`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simListen, "listen", ":5760", "TCP listen address")
	simulateCmd.Flags().StringVar(&simWSListen, "ws-listen", "", "HTTP listen address for WebSocket clients")
	simulateCmd.Flags().Float64Var(&simTelemetryRate, "telemetry-rate", 25, "Telemetry frames per second during the application loop")
	simulateCmd.Flags().BoolVar(&simDenyRoute, "deny-route", false, "Refuse route transfers")
	simulateCmd.Flags().BoolVar(&simDenyFlight, "deny-flight", false, "Refuse to start flights")
	simulateCmd.Flags().Int32Var(&simProtocol, "protocol-version", 0, "Protocol version to report (0 for the current one)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed for sensor noise (0 for time based)")
	simulateCmd.Flags().StringVar(&simSettings, "settings", "", "Settings file to preload")
}

func simulatorOptions() ([]simulator.Option, error) {
	opts := []simulator.Option{
		simulator.WithLogger(logging.Component(log, "simulator")),
		simulator.WithTelemetryRate(simTelemetryRate),
		simulator.WithRouteAllowed(!simDenyRoute),
		simulator.WithFlightAllowed(!simDenyFlight),
	}
	if simProtocol != 0 {
		opts = append(opts, simulator.WithProtocolVersion(simProtocol))
	}
	if simSeed != 0 {
		opts = append(opts, simulator.WithSeed(simSeed))
	}

	if simSettings != "" {
		b, err := settings.Load(simSettings)
		if err != nil {
			return nil, err
		}
		if b.Calibration != nil {
			opts = append(opts, simulator.WithCalibration(b.Calibration))
		}
		if b.Control != nil {
			opts = append(opts, simulator.WithControlSettings(b.Control))
		}
		if b.Route != nil {
			opts = append(opts, simulator.WithRoute(b.Route))
		}
	}
	return opts, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	opts, err := simulatorOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Port != "" {
		return simulateSerial(ctx, opts)
	}

	ln, err := net.Listen("tcp", simListen)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("Simulator listening (TCP)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := simulator.Serve(ctx, ln, opts...); err != nil {
			errs <- err
		}
		cancel()
	}()

	if simWSListen != "" {
		srv := &http.Server{
			Addr:              simWSListen,
			Handler:           simulatorHandler(ctx, opts),
			ReadHeaderTimeout: 10 * time.Second,
		}
		log.Info().Str("addr", simWSListen).Msg("Simulator listening (WebSocket /skylink)")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
			cancel()
		}()

		<-ctx.Done()
		shutdownCtx, stopShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("WebSocket server shutdown")
		}
	}

	wg.Wait()
	close(errs)
	return <-errs
}

// simulatorHandler upgrades /skylink requests and runs a simulator on each
// until the client leaves or ctx is done
func simulatorHandler(ctx context.Context, opts []simulator.Option) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/skylink", func(w http.ResponseWriter, r *http.Request) {
		stream, err := transport.AcceptWebSocket(w, r, transport.WithLogger(logging.Component(log, "transport")))
		if err != nil {
			log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}
		simulator.New(stream, opts...)
		if err := stream.Connect(); err != nil {
			log.Warn().Err(err).Msg("WebSocket session failed")
			return
		}

		select {
		case <-stream.Done():
		case <-ctx.Done():
			stream.Disconnect()
			<-stream.Done()
		}
	})
	return mux
}

// simulateSerial answers on the configured serial port, reopening it when
// the port goes away
func simulateSerial(ctx context.Context, opts []simulator.Option) error {
	stream := transport.NewSerial(cfg.Port, cfg.Baud, transport.WithLogger(logging.Component(log, "transport")))
	simulator.New(stream, opts...)

	fmt.Printf("Simulator answering on %s\n", stream)
	for {
		if err := stream.Connect(); err != nil {
			log.Warn().Err(err).Msg("Serial open failed, retrying")
		} else {
			select {
			case <-stream.Done():
				log.Info().Msg("Serial port closed")
			case <-ctx.Done():
				stream.Disconnect()
				<-stream.Done()
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}
