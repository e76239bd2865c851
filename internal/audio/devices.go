// Package audio discovers PulseAudio input sources and resolves the
// configured capture device used by the transcription collaborator.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the device can record right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// Selection is the resolved source plus fallback context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns Pulse input sources with default/availability metadata.
func ListDevices(ctx context.Context) ([]Device, error) {
	type result struct {
		devices []Device
		err     error
	}
	done := make(chan result, 1)
	go func() {
		devices, err := listPulseSources()
		done <- result{devices, err}
	}()

	select {
	case r := <-done:
		return r.devices, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("list audio devices: %w", ctx.Err())
	}
}

func listPulseSources() ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parla"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultSource.ID(),
		})
	}
	return devices, nil
}

// Choose applies the selection policy to a device list. "default" or an
// empty preference means the Pulse default source; anything else matches a
// device id or description case-insensitively. When the primary device is
// unusable the fallback is tried and the result carries a warning.
func Choose(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := resolvePreference(devices, input, "audio.input")
	if err != nil {
		return Selection{}, err
	}
	if primary.Usable() {
		return Selection{Device: primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	secondary, err := resolvePreference(devices, fallback, "audio.fallback")
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %q is %s and no usable fallback: %w", primary.ID, reason, err)
	}
	if !secondary.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", secondary.ID)
	}
	if secondary.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", secondary.ID)
	}

	return Selection{
		Device:   secondary,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, secondary.ID),
		Fallback: primary.ID != secondary.ID,
	}, nil
}

func resolvePreference(devices []Device, preference, key string) (Device, error) {
	term := strings.ToLower(strings.TrimSpace(preference))
	if term == "" || term == "default" {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}

	for _, dev := range devices {
		if deviceMatches(dev, term) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", key, preference)
}

func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable reads the active port's availability; sources without
// ports are always available.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available != 1
	}
	return true
}
