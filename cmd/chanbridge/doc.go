// Command chanbridge exposes modem channels as host terminal devices.
//
// Usage:
//
//	chanbridge serve --channels /etc/chanbridge/channels.yaml
//	chanbridge channels --wince
//	chanbridge peer --listen 127.0.0.1:8091
package main
