// Package workspace is the application context of mqttscope.
//
// A Workspace owns the session Manager, the connection profiles and every
// in-memory projection built from session events: the message store with
// its topic index, per-connection state and log lines, and throughput
// history. It is constructed once at startup and passed by reference to
// the API server and the CLI; there is no process-wide instance.
//
// The Workspace is the Manager's EventHandler. Each event is applied to the
// stores first and then handed to registered listeners (the WebSocket hub,
// the console echo), so a listener that reads a store after an event always
// sees that event applied.
//
// Operator publishes are validated against their declared format before
// anything reaches the broker. A successful publish is recorded in the
// message store as an outbound message with the declared format.
//
// Usage:
//
//	ws := workspace.New(cfg.Store, workspace.WithLogger(log))
//	defer ws.Close(context.Background())
//	go ws.Run(ctx)
//
//	p, err := ws.ConnectProfile(ctx, profile)
//	err = ws.Subscribe(ctx, p.ID, "home/#", message.AtMostOnce)
package workspace
