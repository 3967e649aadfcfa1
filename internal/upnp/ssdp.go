package upnp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/logging"
)

const (
	ssdpAddress = "239.255.255.250:1900"

	// cacheMaxAge is the advertised notification lifetime in seconds.
	// Re-announcements run at a third of it.
	cacheMaxAge = 1800

	serverHeader = "Linux UPnP/1.0 async-upnp-media-server/1.0"
)

// SSDP announces the server on the local network and answers M-SEARCH
// discovery requests.
type SSDP struct {
	udn      string
	location string
	logger   *slog.Logger
}

// NewSSDP builds the announcer. location is the absolute device description
// URL, e.g. http://192.168.1.5:8000/device.xml.
func NewSSDP(udn, location string, logger *slog.Logger) *SSDP {
	return &SSDP{
		udn:      udn,
		location: location,
		logger:   logging.NewComponentLogger(logger, "ssdp"),
	}
}

// notificationTypes lists every NT/ST value the device answers for.
func (s *SSDP) notificationTypes() []string {
	return []string{
		"upnp:rootdevice",
		"uuid:" + s.udn,
		DeviceType,
		ContentDirectoryType,
		ConnectionManagerType,
	}
}

func (s *SSDP) usnFor(nt string) string {
	if nt == "uuid:"+s.udn {
		return nt
	}
	return "uuid:" + s.udn + "::" + nt
}

// Run announces presence, answers M-SEARCH queries, and sends byebye
// notifications when the context is cancelled.
func (s *SSDP) Run(ctx context.Context) error {
	group, err := net.ResolveUDPAddr("udp4", ssdpAddress)
	if err != nil {
		return fmt.Errorf("ssdp: resolve multicast group: %w", err)
	}

	listener, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return fmt.Errorf("ssdp: join multicast group: %w", err)
	}
	defer listener.Close()

	sender, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("ssdp: open announce socket: %w", err)
	}
	defer sender.Close()

	s.notifyAlive(sender, group)
	s.logger.Info("announcing",
		logging.String("location", s.location),
		logging.String("udn", s.udn))

	go s.answerSearches(ctx, listener)

	ticker := time.NewTicker(cacheMaxAge / 3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.notifyByebye(sender, group)
			return ctx.Err()
		case <-ticker.C:
			s.notifyAlive(sender, group)
		}
	}
}

func (s *SSDP) notifyAlive(conn *net.UDPConn, group *net.UDPAddr) {
	for _, nt := range s.notificationTypes() {
		msg := "NOTIFY * HTTP/1.1\r\n" +
			"HOST: " + ssdpAddress + "\r\n" +
			fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", cacheMaxAge) +
			"LOCATION: " + s.location + "\r\n" +
			"NT: " + nt + "\r\n" +
			"NTS: ssdp:alive\r\n" +
			"SERVER: " + serverHeader + "\r\n" +
			"USN: " + s.usnFor(nt) + "\r\n\r\n"
		if _, err := conn.WriteToUDP([]byte(msg), group); err != nil {
			s.logger.Warn("send alive notification", logging.Error(err))
			return
		}
	}
}

func (s *SSDP) notifyByebye(conn *net.UDPConn, group *net.UDPAddr) {
	for _, nt := range s.notificationTypes() {
		msg := "NOTIFY * HTTP/1.1\r\n" +
			"HOST: " + ssdpAddress + "\r\n" +
			"NT: " + nt + "\r\n" +
			"NTS: ssdp:byebye\r\n" +
			"USN: " + s.usnFor(nt) + "\r\n\r\n"
		if _, err := conn.WriteToUDP([]byte(msg), group); err != nil {
			return
		}
	}
}

func (s *SSDP) answerSearches(ctx context.Context, listener *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = listener.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := listener.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return
		}
		st, ok := parseSearch(string(buf[:n]))
		if !ok {
			continue
		}
		for _, nt := range s.notificationTypes() {
			if st != "ssdp:all" && st != nt {
				continue
			}
			response := "HTTP/1.1 200 OK\r\n" +
				fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", cacheMaxAge) +
				"EXT:\r\n" +
				"LOCATION: " + s.location + "\r\n" +
				"SERVER: " + serverHeader + "\r\n" +
				"ST: " + nt + "\r\n" +
				"USN: " + s.usnFor(nt) + "\r\n\r\n"
			if _, err := listener.WriteToUDP([]byte(response), addr); err != nil {
				s.logger.Warn("answer search",
					logging.String("peer", addr.String()),
					logging.Error(err))
			}
		}
	}
}

// parseSearch extracts the ST header from an M-SEARCH request. Anything else
// on the multicast group, including our own notifications, is ignored.
func parseSearch(payload string) (string, bool) {
	lines := strings.Split(payload, "\r\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "M-SEARCH ") {
		return "", false
	}
	for _, line := range lines[1:] {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "ST") {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}
