/*
Package network implements the runtime's minimal network stack.

# Overview

Two primitives are provided, both on raw TCP:

  - Client: a one-shot HTTP/1.1 client. Each request opens a connection,
    writes the serialized request once with "Connection: close", reads until
    the peer closes and parses the response incrementally. Failures to
    resolve or connect complete with the zero Response (status 0, no body);
    nothing is retried.
  - Socket: a long-lived TCP connection with explicit Connect and Write and
    an event stream (connect, data, error, close) that ends after the first
    close or error.

Every Write copies its input into a buffer owned by that single write; the
buffer is dropped when the write completes. Completions are exposed as a
single-resolution Future or as a finite channel of events, never as bare
callbacks, so callers choose which goroutine handles them.

TLS is not supported: https URLs complete with the zero Response.
*/
package network
