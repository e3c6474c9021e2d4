// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TransportFactory builds a transport for one port
type TransportFactory func(config *SerialConfig, logger *zap.Logger) (Transport, error)

// Registry maps connection types to transport factories
type Registry struct {
	factories map[ConnectionType]TransportFactory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates a registry with the serial transport registered
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		factories: make(map[ConnectionType]TransportFactory),
		logger:    logger,
	}
	r.Register(ConnectionTypeSerial, createSerialTransport)
	return r
}

// Register registers a transport factory
func (r *Registry) Register(kind ConnectionType, factory TransportFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = factory
	r.logger.Debug("Transport registered", zap.String("connection_type", string(kind)))
}

// CreateTransport creates a transport of the given type
func (r *Registry) CreateTransport(kind ConnectionType, config *SerialConfig) (Transport, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported transport type: %s", kind)
	}
	return factory(config, r.logger)
}

// ListTransports returns the registered connection types
func (r *Registry) ListTransports() []ConnectionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]ConnectionType, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

func createSerialTransport(config *SerialConfig, logger *zap.Logger) (Transport, error) {
	if config.Port == "" {
		return nil, fmt.Errorf("serial port is required")
	}
	if config.BaudRate <= 0 {
		config.BaudRate = 9600
	}
	if config.DataBits == 0 {
		config.DataBits = 8
	}

	logger.Info("Creating serial transport",
		zap.String("port", config.Port),
		zap.Int("baud_rate", config.BaudRate),
	)

	return NewSerialConnection(config, logger), nil
}
