package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/parla/internal/config"
)

type cueKind int

const (
	cueComplete cueKind = iota + 1
	cueError
)

const cueSampleRate = 16000

type tone struct {
	hz       float64
	duration time.Duration
	volume   float64
}

var (
	completeCuePCM = synthesizeCue(
		tone{hz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		tone{hz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	)
	errorCuePCM = synthesizeCue(
		tone{hz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		tone{hz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	)
)

// emitCue plays the configured cue file, falling back to a synthesized tone
// over PulseAudio when no file is set or playback fails.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if path := cueFile(kind, cfg); path != "" {
		if err := playCueFile(ctx, path); err == nil {
			return nil
		}
	}

	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playSynthCue(ctx, samples)
}

func cueFile(kind cueKind, cfg config.IndicatorConfig) string {
	var raw string
	switch kind {
	case cueComplete:
		raw = cfg.SoundCompleteFile
	case cueError:
		raw = cfg.SoundErrorFile
	}
	if raw == "" {
		return ""
	}
	path, err := config.ExpandHome(raw)
	if err != nil {
		return raw
	}
	return path
}

func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file: %w", err)
	}
	cmd := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pw-play %s: %w", path, err)
	}
	return nil
}

func playSynthCue(ctx context.Context, samples []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parla"),
		pulse.ClientApplicationIconName("accessories-text-editor"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("parla cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	return stream.Error()
}

func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueComplete:
		return completeCuePCM
	case cueError:
		return errorCuePCM
	default:
		return nil
	}
}

// synthesizeCue joins tones with a short silence between them.
func synthesizeCue(tones ...tone) []int16 {
	gap := make([]int16, sampleCount(22*time.Millisecond))

	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(t)...)
	}
	return pcm
}

// synthesizeTone renders a sine wave with a linear attack and release of at
// most 5ms to avoid clicks.
func synthesizeTone(t tone) []int16 {
	n := sampleCount(t.duration)
	if n <= 0 || t.hz <= 0 || t.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), cueSampleRate/200)

	pcm := make([]int16, n)
	for i := range pcm {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = min(envelope, float64(tail)/float64(ramp))
		}
		sample := math.Sin(2 * math.Pi * t.hz * float64(i) / cueSampleRate)
		pcm[i] = int16(math.Round(sample * t.volume * envelope * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
