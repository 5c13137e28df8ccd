//go:build !linux && !darwin

package socket

// Platforms without a tuning binding get the portable options from
// Apply/ApplyListener and nothing else.

func tuneConn(int, *Options) {}

func tuneListener(int, *Options) error { return nil }

func setQuickAck(int) error { return nil }
