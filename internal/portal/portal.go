// internal/portal/portal.go
package portal

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrFormat is returned when a procedure file does not follow the expected layout
var ErrFormat = errors.New("portal file format error")

// Portal is one access point of a procedure with its mounting settings
type Portal struct {
	Number    int     `json:"number"`
	Rail      int     `json:"rail"`
	RailPos   float32 `json:"rail_pos"`
	FlipAngle float32 `json:"flip_angle"`
	TiltAngle float32 `json:"tilt_angle"`
	ComPort   string  `json:"com_port"`
}

// Procedure is a named set of portals
type Procedure struct {
	Name    string   `json:"name"`
	Portals []Portal `json:"portals"`
}

// FindByComPort returns the portal driven by a serial port
func (p *Procedure) FindByComPort(port string) (Portal, bool) {
	for _, portal := range p.Portals {
		if strings.EqualFold(portal.ComPort, port) {
			return portal, true
		}
	}
	return Portal{}, false
}

type xmlProcedure struct {
	XMLName xml.Name    `xml:"Procedure"`
	Name    string      `xml:"Name,attr"`
	Portals *xmlPortals `xml:"Portals"`
}

type xmlPortals struct {
	Portals []xmlPortal `xml:"Portal"`
}

type xmlPortal struct {
	Number   *string      `xml:"Number,attr"`
	Settings *xmlSettings `xml:"PortalSettings"`
}

type xmlSettings struct {
	Rail      *string `xml:"Rail,attr"`
	RailPos   *string `xml:"RailPos,attr"`
	FlipAngle *string `xml:"FlipAngle,attr"`
	TiltAngle *string `xml:"TiltAngle,attr"`
	ComPort   string  `xml:"ComPort,attr"`
}

// LoadFile parses a procedure file
func LoadFile(path string) (*Procedure, error) {
	if path == "" {
		return nil, fmt.Errorf("no portal file to load")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open portal file: %w", err)
	}
	defer f.Close()

	proc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proc, nil
}

// Parse reads a procedure document. Portals without settings are skipped.
func Parse(r io.Reader) (*Procedure, error) {
	var doc xmlProcedure
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrFormat)
		}
		var unexpected xml.UnmarshalError
		if errors.As(err, &unexpected) {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return nil, fmt.Errorf("failed to parse portal file: %w", err)
	}
	if doc.Portals == nil {
		return nil, fmt.Errorf("%w: missing Portals element", ErrFormat)
	}

	proc := &Procedure{Name: doc.Name, Portals: make([]Portal, 0, len(doc.Portals.Portals))}
	for i, node := range doc.Portals.Portals {
		if node.Settings == nil {
			continue
		}
		portal, err := node.decode()
		if err != nil {
			return nil, fmt.Errorf("portal %d: %w", i, err)
		}
		proc.Portals = append(proc.Portals, portal)
	}
	return proc, nil
}

func (n xmlPortal) decode() (Portal, error) {
	var (
		p   Portal
		err error
	)
	if p.Number, err = intAttr("Number", n.Number); err != nil {
		return p, err
	}
	s := n.Settings
	if p.Rail, err = intAttr("Rail", s.Rail); err != nil {
		return p, err
	}
	if p.RailPos, err = floatAttr("RailPos", s.RailPos); err != nil {
		return p, err
	}
	if p.FlipAngle, err = floatAttr("FlipAngle", s.FlipAngle); err != nil {
		return p, err
	}
	if p.TiltAngle, err = floatAttr("TiltAngle", s.TiltAngle); err != nil {
		return p, err
	}
	p.ComPort = s.ComPort
	return p, nil
}

func intAttr(name string, raw *string) (int, error) {
	if raw == nil {
		return 0, fmt.Errorf("%w: attribute not found: %s", ErrFormat, name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return 0, fmt.Errorf("%w: waiting for int for attribute %s, got %q", ErrFormat, name, *raw)
	}
	return v, nil
}

func floatAttr(name string, raw *string) (float32, error) {
	if raw == nil {
		return 0, fmt.Errorf("%w: attribute not found: %s", ErrFormat, name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*raw), 32)
	if err != nil {
		return 0, fmt.Errorf("%w: waiting for float for attribute %s, got %q", ErrFormat, name, *raw)
	}
	return float32(v), nil
}
