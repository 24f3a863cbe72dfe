package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ebfe/scard"
	"github.com/rs/zerolog"

	"github.com/gregLibert/ccid-transceiver/pkg/apdu"
	"github.com/gregLibert/ccid-transceiver/pkg/ccid"
	"github.com/gregLibert/ccid-transceiver/pkg/tlv"
	"github.com/gregLibert/ccid-transceiver/pkg/usbconn"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ccid-transceiver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file.toml] [APDU-hex ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			return err
		}
	}
	for _, arg := range flag.Args() {
		cmd, err := parseAPDU(arg)
		if err != nil {
			return err
		}
		cfg.APDUs = append(cfg.APDUs, cmd)
	}

	logger := newLogger(cfg.LogLevel)

	// --- 1. Hardware Setup ---
	var (
		card    apdu.Transmitter
		atr     []byte
		release func()
		err     error
	)
	switch cfg.Backend {
	case backendPCSC:
		card, atr, release, err = openPCSC(cfg, logger)
	default:
		card, atr, release, err = openUSB(cfg, logger)
	}
	if err != nil {
		return err
	}
	defer release()

	fmt.Printf(">> ATR: %X\n", atr)

	// --- 2. Execution Flow ---
	client := apdu.NewClient(card)
	client.Logger = logger

	for _, cmd := range cfg.APDUs {
		if err := exchange(client, cmd, cfg.DescribeTLV); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// openUSB drives the reader's CCID interface directly and powers the slot.
func openUSB(cfg appConfig, logger zerolog.Logger) (apdu.Transmitter, []byte, func(), error) {
	session, err := usbconn.Open(cfg.USB, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	tr := ccid.NewTransceiver(session, session.In(), session.Out(),
		ccid.WithLogger(logger),
		ccid.WithTransferTimeout(cfg.TransferTimeout),
		ccid.WithPowerOnTimeout(cfg.PowerOnTimeout),
		ccid.WithRetryDelay(cfg.RetryDelay),
	)

	block, err := tr.PowerOn()
	if err != nil {
		if cerr := session.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, nil, nil, err
	}
	logger.Debug().Stringer("block", block).Msg("slot powered")

	release := func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close usb session")
		}
	}
	return apdu.NewCCIDCard(tr), block.Data(), release, nil
}

// openPCSC goes through the system PC/SC service instead.
func openPCSC(cfg appConfig, logger zerolog.Logger) (apdu.Transmitter, []byte, func(), error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("establish pcsc context: %w", err)
	}
	releaseCtx := func() {
		if err := ctx.Release(); err != nil {
			logger.Warn().Err(err).Msg("failed to release pcsc context")
		}
	}

	reader := cfg.Reader
	if reader == "" {
		readers, err := ctx.ListReaders()
		if err != nil || len(readers) == 0 {
			releaseCtx()
			return nil, nil, nil, fmt.Errorf("no smart card reader found: %v", err)
		}
		reader = readers[0]
	}
	logger.Info().Str("reader", reader).Msg("using pcsc reader")

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		releaseCtx()
		return nil, nil, nil, fmt.Errorf("connect to %q: %w", reader, err)
	}

	status, err := card.Status()
	if err != nil {
		_ = card.Disconnect(scard.LeaveCard)
		releaseCtx()
		return nil, nil, nil, fmt.Errorf("read card status: %w", err)
	}

	release := func() {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			logger.Warn().Err(err).Msg("failed to disconnect card")
		}
		releaseCtx()
	}
	return card, status.Atr, release, nil
}

func exchange(client *apdu.Client, cmd []byte, describe bool) error {
	fmt.Printf("\n>> %X\n", cmd)

	trace, err := client.Send(cmd)
	if err != nil {
		return fmt.Errorf("send %X: %w", cmd, err)
	}

	data := trace.Data()
	fmt.Printf("   Data (%d bytes): %X\n", len(data), data)
	fmt.Printf("   Status: %s\n", trace.Status())

	if describe && len(data) > 0 {
		out, err := tlv.Describe(data)
		if err != nil {
			fmt.Printf("   (not BER-TLV: %v)\n", err)
			return nil
		}
		fmt.Println(out)
	}
	return nil
}
