// Package sensor speaks the TEMPer device protocols and turns raw device
// bytes into calibrated readings.
//
// Two transports exist. HID devices exchange fixed 8-byte frames over a
// hidraw node: a firmware query identifies the protocol family, then a
// data query returns the raw measurement buffer, decoded at fixed offsets
// with a per-family divisor. Serial devices speak a line-oriented text
// protocol over a tty node at 9600 8N1.
//
// Per-device protocol failures (an unresponsive device, an unrecognised
// firmware id) are captured in the Reading's error field so one bad device
// never aborts a batch. Only transport-level failures — chiefly a device
// node that vanished before open — surface as Go errors.
package sensor
