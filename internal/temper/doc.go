// Package temper owns the in-memory device registry and orchestrates
// sensor acquisition.
//
// The registry is a snapshot of the USB topology keyed by sysfs path,
// rebuilt wholesale — never patched — when it passes its staleness
// threshold or when a device node vanishes mid-read. Acquisition iterates
// the recognised devices in bus/device-number order, dispatches each to
// the HID or serial decoder, and merges decoder output with bus identity.
//
// Every operation serialises through one exclusive lock so that physical
// device I/O from concurrent callers never interleaves.
package temper
