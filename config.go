package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/gregLibert/ccid-transceiver/pkg/ccid"
	"github.com/gregLibert/ccid-transceiver/pkg/usbconn"
)

// Backends.
const (
	backendUSB  = "usb"
	backendPCSC = "pcsc"
)

type appConfig struct {
	Backend     string
	LogLevel    zerolog.Level
	DescribeTLV bool
	APDUs       [][]byte

	USB             usbconn.Config
	TransferTimeout time.Duration
	PowerOnTimeout  time.Duration
	RetryDelay      time.Duration

	Reader string
}

type fileConfig struct {
	Backend  string   `toml:"backend"`
	LogLevel string   `toml:"log_level"`
	TLV      bool     `toml:"tlv"`
	APDUs    []string `toml:"apdus"`
	USB      struct {
		VendorID        uint16 `toml:"vendor_id"`
		ProductID       uint16 `toml:"product_id"`
		Configuration   int    `toml:"configuration"`
		Interface       int    `toml:"interface"`
		AltSetting      int    `toml:"alt_setting"`
		BulkIn          int    `toml:"bulk_in"`
		BulkOut         int    `toml:"bulk_out"`
		TransferTimeout string `toml:"transfer_timeout"`
		PowerOnTimeout  string `toml:"power_on_timeout"`
		RetryDelay      string `toml:"retry_delay"`
	} `toml:"usb"`
	PCSC struct {
		Reader string `toml:"reader"`
	} `toml:"pcsc"`
}

func defaultConfig() appConfig {
	return appConfig{
		Backend:         backendUSB,
		LogLevel:        zerolog.InfoLevel,
		USB:             usbconn.DefaultConfig(),
		TransferTimeout: ccid.DefaultTransferTimeout,
		PowerOnTimeout:  ccid.DefaultPowerOnTimeout,
		RetryDelay:      ccid.DefaultRetryDelay,
	}
}

func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("backend") {
		backend := strings.ToLower(strings.TrimSpace(raw.Backend))
		if backend != backendUSB && backend != backendPCSC {
			return appConfig{}, fmt.Errorf("unknown backend %q", raw.Backend)
		}
		cfg.Backend = backend
	}

	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}

	if meta.IsDefined("tlv") {
		cfg.DescribeTLV = raw.TLV
	}

	for i, s := range raw.APDUs {
		cmd, err := parseAPDU(s)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse apdus[%d]: %w", i, err)
		}
		cfg.APDUs = append(cfg.APDUs, cmd)
	}

	if meta.IsDefined("usb", "vendor_id") {
		cfg.USB.VendorID = raw.USB.VendorID
	}
	if meta.IsDefined("usb", "product_id") {
		cfg.USB.ProductID = raw.USB.ProductID
	}
	if meta.IsDefined("usb", "configuration") {
		cfg.USB.Configuration = raw.USB.Configuration
	}
	if meta.IsDefined("usb", "interface") {
		cfg.USB.Interface = raw.USB.Interface
	}
	if meta.IsDefined("usb", "alt_setting") {
		cfg.USB.AltSetting = raw.USB.AltSetting
	}
	if meta.IsDefined("usb", "bulk_in") {
		cfg.USB.BulkIn = raw.USB.BulkIn
	}
	if meta.IsDefined("usb", "bulk_out") {
		cfg.USB.BulkOut = raw.USB.BulkOut
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"transfer_timeout", raw.USB.TransferTimeout, &cfg.TransferTimeout},
		{"power_on_timeout", raw.USB.PowerOnTimeout, &cfg.PowerOnTimeout},
		{"retry_delay", raw.USB.RetryDelay, &cfg.RetryDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined("usb", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse usb.%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("pcsc", "reader") {
		cfg.Reader = strings.TrimSpace(raw.PCSC.Reader)
	}

	return cfg, nil
}

// parseAPDU decodes a command written as hex, allowing spaces and colons.
func parseAPDU(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(s)
	cmd, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(cmd) < 4 {
		return nil, fmt.Errorf("apdu %q shorter than a header", s)
	}
	return cmd, nil
}
