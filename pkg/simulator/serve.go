// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Thermoquad/skylink/pkg/transport"
)

// Serve accepts connections on ln and runs one simulator per connection
// until ctx is cancelled. Open sessions are disconnected before it returns.
func Serve(ctx context.Context, ln net.Listener, opts ...Option) error {
	var (
		mu      sync.Mutex
		streams = make(map[*transport.Stream]struct{})
		wg      sync.WaitGroup
	)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !errors.Is(aerr, net.ErrClosed) {
				err = fmt.Errorf("accept: %w", aerr)
			}
			break
		}

		stream := transport.FromConn("TCP: "+conn.RemoteAddr().String(), conn)
		New(stream, opts...)
		if cerr := stream.Connect(); cerr != nil {
			conn.Close()
			continue
		}

		mu.Lock()
		streams[stream] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-stream.Done()
			mu.Lock()
			delete(streams, stream)
			mu.Unlock()
		}()
	}

	mu.Lock()
	for stream := range streams {
		stream.Disconnect()
	}
	mu.Unlock()
	wg.Wait()
	return err
}
