// Package device provides the HTTP client for the signal device.
//
// The device exposes a minimal GET-only protocol:
//
//	GET {baseURL}/                   liveness probe, any response means alive
//	GET {baseURL}/{channel}/on       light a channel
//	GET {baseURL}/{channel}/off      clear a channel
//
// There is no combined write on the wire; [Client.SendSignalState] issues the
// two channel writes concurrently and reports both outcomes.
package device
