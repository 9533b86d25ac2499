// Package watch listens for udev netlink events and starts a camerasync run
// when camera storage carrying a filesystem is attached.
package watch
