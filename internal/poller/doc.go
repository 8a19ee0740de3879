// Package poller runs the two periodic tasks that keep the light in step
// with the presence label.
//
// The main components are:
//
//   - [Scheduler]: runs the sync and refresh tasks on independent tickers
//   - [Result]: outcome of one tick of either task
//   - [StatusSource]: where the refresh task reads the label
//
// The sync task reads the store, probes the device, maps the stored label to
// a signal state and writes both channels. The refresh task reads the status
// source and merges the label into the store. The store is the only state the
// two tasks share.
//
// Users of the statuslight library should not need to interact with this
// package directly. Configuration is done through the root package.
package poller
