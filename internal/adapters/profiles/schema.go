package profiles

import (
	"fmt"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

const currentVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	Boards  []boardSchema `toml:"boards"`
}

type boardSchema struct {
	ID       string   `toml:"id"`
	Name     string   `toml:"name"`
	Chip     string   `toml:"chip"`
	PinCount int      `toml:"pin_count"`
	Pins     []string `toml:"pins"`
	Features []string `toml:"features"`
}

func (f *fileSchema) applyDefaults() {
	if f.Version == 0 {
		f.Version = currentVersion
	}
}

func (f fileSchema) validateVersion() error {
	if f.Version != 0 && f.Version != currentVersion {
		return fmt.Errorf("unsupported boards file version %d", f.Version)
	}
	return nil
}

func builtinSchema() fileSchema {
	return fileSchema{
		Version: currentVersion,
		Boards: []boardSchema{
			toSchema(domain.GenericLinuxBoard()),
			{
				ID:       "circuitplayground_express",
				Name:     "Circuit Playground Express",
				Chip:     "SAMD21",
				PinCount: 13,
				Pins:     []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "D13", "LED", "SDA", "SCL", "TX", "RX"},
				Features: []string{"digitalio", "busio", "neopixel", "accelerometer", "light_sensor", "thermistor"},
			},
			{
				ID:       "raspberry_pi_pico",
				Name:     "Raspberry Pi Pico",
				Chip:     "RP2040",
				PinCount: 29,
				Pins: []string{
					"GP0", "GP1", "GP2", "GP3", "GP4", "GP5", "GP6", "GP7", "GP8", "GP9",
					"GP10", "GP11", "GP12", "GP13", "GP14", "GP15", "GP16", "GP17", "GP18", "GP19",
					"GP20", "GP21", "GP22", "GP25", "GP26", "GP27", "GP28", "LED", "VBUS_SENSE",
				},
				Features: []string{"digitalio", "busio", "pwmio", "adc"},
			},
		},
	}
}

func toSchema(profile domain.BoardProfile) boardSchema {
	return boardSchema{
		ID:       profile.ID,
		Name:     profile.Name,
		Chip:     profile.Chip,
		PinCount: profile.PinCount,
		Pins:     profile.Pins,
		Features: profile.Features,
	}
}

func fromSchema(entry boardSchema) domain.BoardProfile {
	profile := domain.BoardProfile{
		ID:       entry.ID,
		Name:     entry.Name,
		Chip:     entry.Chip,
		PinCount: entry.PinCount,
		Pins:     entry.Pins,
		Features: entry.Features,
	}
	if profile.PinCount == 0 {
		profile.PinCount = len(profile.Pins)
	}
	return profile
}
