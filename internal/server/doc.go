// Package server exposes the device inventory over HTTP: a JSON API
// for listing, scanning, and exporting, a WebSocket feed of scan
// events, and an optional scheduled background scan.
package server
