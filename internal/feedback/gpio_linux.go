//go:build linux

package feedback

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLEDs drives two output lines through the Linux GPIO character device.
type RealLEDs struct {
	chip  *gpiocdev.Chip
	green *gpiocdev.Line
	red   *gpiocdev.Line
}

func NewRealLEDs(chipName string, pinGreen, pinRed int) (*RealLEDs, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	green, err := chip.RequestLine(pinGreen, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request green pin %d: %w", pinGreen, err)
	}
	red, err := chip.RequestLine(pinRed, gpiocdev.AsOutput(0))
	if err != nil {
		green.Close()
		chip.Close()
		return nil, fmt.Errorf("request red pin %d: %w", pinRed, err)
	}
	return &RealLEDs{chip: chip, green: green, red: red}, nil
}

func (l *RealLEDs) Set(green, red bool) error {
	if err := l.green.SetValue(boolToInt(green)); err != nil {
		return fmt.Errorf("set green: %w", err)
	}
	if err := l.red.SetValue(boolToInt(red)); err != nil {
		return fmt.Errorf("set red: %w", err)
	}
	return nil
}

// Close turns both LEDs off and releases the lines.
func (l *RealLEDs) Close() error {
	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"green": l.green, "red": l.red} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
