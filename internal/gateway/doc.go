// Package gateway implements the REST client for the SMS gateway vendor API.
//
// The vendor exposes Android phones as SMS gateway devices behind a
// cloud API. This package covers the four calls the bridge needs:
//
//   - ListDevices: enumerate registered devices
//   - ListReceivedMessages: fetch the received-SMS list for one device
//   - Send: deliver an SMS (or MMS with media URLs) through a device
//   - GetMessage: fetch a single message by ID
//
// # Authentication
//
// Every request carries the account API key in the x-api-key header.
// A 401 response maps to ErrAuth, which callers treat as fatal; any
// other failure (HTTP >= 400, timeout, network error) maps to
// ErrTransient and is retried on the next poll cycle.
//
// # Response Shape
//
// The vendor wraps list responses inconsistently ("devices", "data",
// "messages", "items", or a bare array). The client unwraps whichever
// key is present and returns raw JSON objects as maps; field alias
// resolution happens downstream in the store.
package gateway
