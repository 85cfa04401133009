// Package ticket encodes and decodes the compact payload carried in an
// attendee's QR code. Encoding is a fixed prefix followed by base64 of a
// compact JSON structure. Decoding is pure: it never touches the network
// and has no side effects.
package ticket

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/synapsefest/scan-gate/internal/model"
)

// payloadPrefix tags strings produced by Encode. Any scanned string
// without it is some other QR code (a URL, a boarding pass) and is
// rejected without further inspection.
const payloadPrefix = "SYNAPSE:"

// ErrInvalidCode is returned for every decode failure: missing prefix,
// broken base64, malformed JSON or a structurally empty payload. The
// classes are deliberately not distinguished so the operator sees one
// generic "invalid code" message regardless of what was actually wrong.
var ErrInvalidCode = errors.New("ticket: invalid QR code")

// wirePayload is the JSON shape inside the base64 envelope. Field names
// are kept short because QR symbol density grows with payload length.
type wirePayload struct {
	SynapseID     string    `json:"sid"`
	GovIDFragment string    `json:"gov,omitempty"`
	Registrations []wireReg `json:"regs"`
	IssuedAt      int64     `json:"iat"`
}

type wireReg struct {
	Type string `json:"t"`
	ID   string `json:"i"`
	Name string `json:"n,omitempty"`
}

// Encode produces the QR string for an attendee and their registrations.
// The issuing system is the only production caller; the scanner uses it
// in tests to build valid inputs.
func Encode(p model.TicketPayload) (string, error) {
	if p.SynapseID == "" {
		return "", ErrInvalidCode
	}
	wire := wirePayload{
		SynapseID:     p.SynapseID,
		GovIDFragment: p.GovIDFragment,
		Registrations: make([]wireReg, 0, len(p.Registrations)),
		IssuedAt:      p.IssuedAt.UTC().Unix(),
	}
	for _, r := range p.Registrations {
		wire.Registrations = append(wire.Registrations, wireReg{Type: r.Type, ID: r.ID, Name: r.Name})
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return payloadPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// Decode parses a scanned string back into a TicketPayload. Every failure
// mode collapses to ErrInvalidCode; Decode never panics on hostile input.
func Decode(s string) (model.TicketPayload, error) {
	if !strings.HasPrefix(s, payloadPrefix) {
		return model.TicketPayload{}, ErrInvalidCode
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, payloadPrefix))
	if err != nil {
		return model.TicketPayload{}, ErrInvalidCode
	}
	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.TicketPayload{}, ErrInvalidCode
	}
	// A payload without an attendee id cannot have come from the issuer.
	if wire.SynapseID == "" {
		return model.TicketPayload{}, ErrInvalidCode
	}
	p := model.TicketPayload{
		SynapseID:     wire.SynapseID,
		GovIDFragment: wire.GovIDFragment,
		Registrations: make([]model.Registration, 0, len(wire.Registrations)),
		IssuedAt:      time.Unix(wire.IssuedAt, 0).UTC(),
	}
	for _, r := range wire.Registrations {
		p.Registrations = append(p.Registrations, model.Registration{Type: r.Type, ID: r.ID, Name: r.Name})
	}
	return p, nil
}
