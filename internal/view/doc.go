// Package view implements the UI surface driven by the UI loop.
//
// A View runs closures dispatched from the logic side in FIFO order on its
// own goroutine and evaluates script in the hosted page. Two implementations
// exist:
//
//   - Web serves the page over HTTP and talks to it over a WebSocket.
//     Outbound evals and inbound native_send calls travel on the socket;
//     assets are served from the Asset Store and /metrics exposes the
//     runtime's Prometheus registry.
//   - Headless records what it is asked to render. It backs tests and
//     VIEW_HEADLESS runs.
//
// Wire format on /ws (JSON, one object per frame):
//
//	page → view:  {"type":"native_send","payload":"<json text>"}
//	              {"type":"ping"}
//	view → page:  {"type":"hello","client_id":"cli_...","title":"..."}
//	              {"type":"eval","js":"..."}
//	              {"type":"reload"}
//	              {"type":"title","title":"..."}
//	              {"type":"pong"}
//	              {"type":"error","message":"..."}
package view
