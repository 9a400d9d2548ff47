// Package mdns advertises the server on the local network so clients can
// discover it without configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the advertised mDNS service type.
	ServiceType = "_homeflix._tcp"

	// APIVersion goes into the TXT records so clients can pick a protocol.
	APIVersion = "v1"
)

// Service manages mDNS advertisement.
type Service struct {
	mu     sync.Mutex
	server *mdns.Server
	logger *slog.Logger
}

// NewService creates an mDNS service.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Start begins advertising on the given port. Failures are typically
// environmental (no multicast in containers) and safe to treat as non-fatal.
func (s *Service) Start(instanceName string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = "homeflix-server"
	}

	txtRecords := []string{
		fmt.Sprintf("name=%s", instanceName),
		fmt.Sprintf("api=%s", APIVersion),
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, txtRecords)
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}
	s.server = server

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType, "port", port, "name", instanceName)
	return nil
}

// Stop halts advertising. Safe to call repeatedly.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
		s.logger.Info("mDNS advertisement stopped")
	}
}
