// Package signal defines the two-channel signal state shown on the device
// and the mapping from presence status labels to that state.
//
// This package is internal to statuslight. The main components are:
//
//   - [State]: desired output of the RED and YELLOW channels
//   - [Channel]: one of the two independently addressed outputs
//   - [Category]: a named state ("red", "yellow", "off") used for overrides
//   - [Mapper]: the fixed status table plus user overrides
//
// Everything here is pure; nothing performs I/O or holds mutable state.
package signal
