// Package script hosts the goja runtime that runs application logic.
//
// A Host owns one runtime on a substrate.Loop. Start installs the native
// bindings (fetch, require, fs, path, os, child_process, NativeSocket,
// timers, clipboard, dialogs and the UI bridge calls) followed by a small
// JavaScript prelude that defines process, EventEmitter and Buffer.
//
// Every entry into script code is an error boundary: top-level scripts,
// module loads, bridge messages, timers and network callbacks. Exceptions
// at a boundary are logged, counted and forwarded to the view console; the
// loop keeps running.
//
// Bridge messages reach scripts through the global handleCommand function,
// called once per message with the parsed JSON payload:
//
//	function handleCommand(msg) {
//	    if (msg.command === "save") fs.writeFile(msg.path, msg.text);
//	}
package script
