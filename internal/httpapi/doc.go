// Package httpapi serves the gateway's HTTP surface: battery and status
// snapshots, the MJPEG video feed, and synchronous command endpoints.
package httpapi
