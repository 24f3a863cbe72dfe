// Package usbconn opens the CCID interface of a USB reader with gousb and
// exposes it as a ccid.Connection.
//
// The device is addressed explicitly by vendor/product ID, configuration,
// interface, alternate setting and bulk endpoint numbers; there is no
// discovery. The Session owns every gousb handle it opened and releases
// them in reverse order on Close. Transceivers built on top only borrow it.
package usbconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog"

	"github.com/gregLibert/ccid-transceiver/pkg/ccid"
)

var (
	// ErrDeviceNotFound indicates no device matched the vendor/product ID.
	ErrDeviceNotFound = errors.New("usbconn: device not found")

	// ErrNotBulk indicates a configured endpoint is not a bulk endpoint.
	ErrNotBulk = errors.New("usbconn: endpoint is not a bulk endpoint")

	// ErrForeignEndpoint indicates an endpoint that does not belong to the session.
	ErrForeignEndpoint = errors.New("usbconn: endpoint not opened by this session")
)

// Config addresses the reader's CCID interface.
type Config struct {
	VendorID      uint16
	ProductID     uint16
	Configuration int
	Interface     int
	AltSetting    int
	BulkIn        int // endpoint number, without the direction bit
	BulkOut       int
}

// DefaultConfig returns the layout used by most single-interface readers.
func DefaultConfig() Config {
	return Config{
		Configuration: 1,
		Interface:     0,
		AltSetting:    0,
		BulkIn:        1,
		BulkOut:       1,
	}
}

type inTransfer interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type outTransfer interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Endpoint is one bulk endpoint of an open Session.
type Endpoint struct {
	address       int
	maxPacketSize int
	in            inTransfer
	out           outTransfer
}

// MaxPacketSize returns wMaxPacketSize from the endpoint descriptor.
func (e *Endpoint) MaxPacketSize() int {
	return e.maxPacketSize
}

// Address returns the endpoint address, direction bit included.
func (e *Endpoint) Address() int {
	return e.address
}

// Session is an opened CCID interface.
type Session struct {
	in      *Endpoint
	out     *Endpoint
	closers []func() error
}

var _ ccid.Connection = (*Session)(nil)

// Open opens the device and claims the configured interface.
func Open(cfg Config, logger zerolog.Logger) (*Session, error) {
	s := &Session{}

	usbCtx := gousb.NewContext()
	s.closers = append(s.closers, usbCtx.Close)

	dev, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		return nil, s.abort(fmt.Errorf("open device %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err))
	}
	if dev == nil {
		return nil, s.abort(fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, cfg.VendorID, cfg.ProductID))
	}
	s.closers = append(s.closers, dev.Close)

	if err := dev.SetAutoDetach(true); err != nil {
		return nil, s.abort(fmt.Errorf("enable kernel driver auto-detach: %w", err))
	}

	usbCfg, err := dev.Config(cfg.Configuration)
	if err != nil {
		return nil, s.abort(fmt.Errorf("select configuration %d: %w", cfg.Configuration, err))
	}
	s.closers = append(s.closers, usbCfg.Close)

	intf, err := usbCfg.Interface(cfg.Interface, cfg.AltSetting)
	if err != nil {
		return nil, s.abort(fmt.Errorf("claim interface %d alt %d: %w", cfg.Interface, cfg.AltSetting, err))
	}
	s.closers = append(s.closers, func() error {
		intf.Close()
		return nil
	})

	in, err := intf.InEndpoint(cfg.BulkIn)
	if err != nil {
		return nil, s.abort(fmt.Errorf("open bulk-in endpoint %d: %w", cfg.BulkIn, err))
	}
	out, err := intf.OutEndpoint(cfg.BulkOut)
	if err != nil {
		return nil, s.abort(fmt.Errorf("open bulk-out endpoint %d: %w", cfg.BulkOut, err))
	}
	if in.Desc.TransferType != gousb.TransferTypeBulk || out.Desc.TransferType != gousb.TransferTypeBulk {
		return nil, s.abort(fmt.Errorf("%w: in %s, out %s", ErrNotBulk, in.Desc.TransferType, out.Desc.TransferType))
	}

	s.in = &Endpoint{address: int(in.Desc.Address), maxPacketSize: in.Desc.MaxPacketSize, in: in}
	s.out = &Endpoint{address: int(out.Desc.Address), maxPacketSize: out.Desc.MaxPacketSize, out: out}

	logger.Info().
		Str("device", fmt.Sprintf("%04x:%04x", cfg.VendorID, cfg.ProductID)).
		Int("interface", cfg.Interface).
		Int("bulk_in_mps", s.in.maxPacketSize).
		Int("bulk_out_mps", s.out.maxPacketSize).
		Msg("ccid interface opened")

	return s, nil
}

// In returns the bulk-in endpoint.
func (s *Session) In() *Endpoint {
	return s.in
}

// Out returns the bulk-out endpoint.
func (s *Session) Out() *Endpoint {
	return s.out
}

// BulkTransfer implements ccid.Connection. The transfer is cancelled once
// timeout elapses.
func (s *Session) BulkTransfer(ep ccid.Endpoint, buf []byte, timeout time.Duration) (int, error) {
	e, ok := ep.(*Endpoint)
	if !ok || (e != s.in && e != s.out) {
		return 0, ErrForeignEndpoint
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if e.in != nil {
		return e.in.ReadContext(ctx, buf)
	}
	return e.out.WriteContext(ctx, buf)
}

// Close releases the interface, configuration, device and context.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Session) abort(err error) error {
	if cerr := s.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
