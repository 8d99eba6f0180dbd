package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DiscoveryPort is the UDP port Alpaca clients broadcast discovery requests to.
const DiscoveryPort = 32227

const discoveryRequest = "alpacadiscovery1"

// DiscoveryResponder responds to Alpaca discovery requests.
type DiscoveryResponder struct {
	addr           string
	port           int
	alpacaResponse []byte
	logger         log.FieldLogger
}

// NewDiscoveryResponder creates a responder advertising the HTTP server on
// alpacaPort. It listens on addr at the discovery port.
func NewDiscoveryResponder(addr string, alpacaPort int, logger log.FieldLogger) (*DiscoveryResponder, error) {
	if alpacaPort <= 0 || alpacaPort > 65535 {
		return nil, fmt.Errorf("invalid Alpaca port: %d", alpacaPort)
	}

	dr := DiscoveryResponder{
		addr:           addr,
		port:           DiscoveryPort,
		alpacaResponse: []byte(fmt.Sprintf(`{"AlpacaPort": %d}`, alpacaPort)),
		logger:         logger,
	}

	return &dr, nil
}

// reply returns the response to a received datagram, if any.
func (d *DiscoveryResponder) reply(data []byte) ([]byte, bool) {
	if !strings.Contains(string(data), discoveryRequest) {
		return nil, false
	}
	return d.alpacaResponse, true
}

// Run answers discovery requests until ctx is cancelled.
func (d *DiscoveryResponder) Run(ctx context.Context) error {
	deviceAddress, err := net.ResolveUDPAddr("udp", net.JoinHostPort(d.addr, strconv.Itoa(d.port)))
	if err != nil {
		return fmt.Errorf("cannot resolve device address: %v", err)
	}

	sock, err := net.ListenUDP("udp", deviceAddress)
	if err != nil {
		return fmt.Errorf("cannot bind discovery socket: %v", err)
	}
	defer sock.Close()

	d.logger.Debugf("Discovery responder started on %s", sock.LocalAddr())

	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Set a read deadline to periodically check for context cancellation
		sock.SetReadDeadline(time.Now().Add(1 * time.Second))

		n, addr, err := sock.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			d.logger.Debugf("Error reading from socket: %v", err)
			continue
		}

		d.logger.Debugf("Received %q from %s", buf[:n], addr)
		if resp, ok := d.reply(buf[:n]); ok {
			if _, err := sock.WriteToUDP(resp, addr); err != nil {
				d.logger.Errorf("Error writing to socket: %v", err)
			}
		}
	}
}
