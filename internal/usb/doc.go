// Package usb discovers USB devices by walking the Linux sysfs hierarchy.
//
// The scanner maps bus-level identity (vendor/product id, manufacturer and
// product strings, bus/device numbers) to the kernel-exposed character
// devices — hidraw nodes and tty nodes — found under each device's subtree.
// It performs no device I/O of its own: a scan is a pure function of the
// filesystem state at call time.
package usb
