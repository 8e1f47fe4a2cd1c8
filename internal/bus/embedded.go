package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Embedded is an in-process NATS server for single-host setups and tests
type Embedded struct {
	srv *server.Server
}

// RunEmbedded starts a NATS server on host:port. A port of -1 picks a
// random free port.
func RunEmbedded(host string, port int) (*Embedded, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	srv, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("nats server on %s:%d did not start", host, port)
	}
	return &Embedded{srv: srv}, nil
}

// ClientURL returns the URL clients should dial
func (e *Embedded) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to exit
func (e *Embedded) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
