// internal/protocol/connection.go
package protocol

import "time"

// ConnectionType selects the transport backing a driver
type ConnectionType string

const (
	ConnectionTypeSerial   ConnectionType = "serial"
	ConnectionTypeEmulated ConnectionType = "emulated"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
	SettleDelay time.Duration `json:"settle_delay"`
}

// DefaultSerialConfig returns the firmware's link settings: 9600 8N1
func DefaultSerialConfig(port string) *SerialConfig {
	return &SerialConfig{
		Port:        port,
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		ReadTimeout: time.Millisecond,
		SettleDelay: 2 * time.Second,
	}
}
