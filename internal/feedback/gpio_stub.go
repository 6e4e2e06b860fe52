//go:build !linux

package feedback

import "errors"

// RealLEDs is unavailable off Linux.
type RealLEDs struct{}

func NewRealLEDs(string, int, int) (*RealLEDs, error) {
	return nil, errors.New("gpio LEDs require linux")
}

func (*RealLEDs) Set(bool, bool) error { return errors.New("gpio LEDs require linux") }
func (*RealLEDs) Close() error         { return nil }
