// Package bridge carries messages between the UI loop and the logic loop.
//
// Inbound traffic (UI to logic) is a bounded FIFO channel. Each accepted
// message triggers exactly one wake, and each wake drains at most one
// message, so order is preserved and nothing is delivered twice. Outbound
// traffic (logic to UI) is a closure dispatched onto the UI loop. The two
// directions are independent and not ordered relative to each other.
package bridge
