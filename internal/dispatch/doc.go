// Package dispatch routes resolved commands to device controllers and owns
// the device state store.
//
// The Dispatcher serializes calls per device, applies a bounded timeout to
// every driver call, and performs exactly one state mutation per successful
// command. The StateStore is single-writer: attribute state changes only
// through the dispatcher (command results and driver-reported external
// updates); every other component reads through Get/Snapshot.
package dispatch
