// Package session owns broker connections.
//
// A Session manages exactly one connection: the connect/disconnect state
// machine, the desired subscription set, and resubscription whenever the
// link comes (back) up. A Manager owns every Session keyed by connection id
// and funnels their events into one consumer.
//
// # State Machine
//
//	disconnected → connecting → connected → reconnecting → connected
//	                    │            │             └──────→ disconnected
//	                    └→ error     └→ disconnected
//
// A connect attempt that is not connected within the session's connect
// timeout (10s by default) is torn down and the session lands in error.
// Callbacks from a torn-down attempt are recognised by their generation
// number and dropped, so a late CONNACK can never resurrect it.
//
// # Events
//
// Sessions never touch storage or UI. Every state change, inbound message,
// transport error and log line is sent as an Event on the session's own
// channel. The Manager forwards each channel into a single consumer loop
// that calls the EventHandler, preserving per-session order while sessions
// proceed independently.
//
// An EventHandler must not call back into Session or Manager methods
// synchronously; it runs on the consumer loop that those methods may be
// waiting on.
//
// # Usage
//
//	mgr := session.NewManager(session.EventHandlerFunc(func(ev session.Event) {
//	    fmt.Println(ev.ConnectionID, ev.Kind)
//	}))
//	defer mgr.Close(context.Background())
//
//	p := session.DefaultProfile()
//	p.ID, p.Name = "local", "Local broker"
//	if err := mgr.Connect(ctx, p); err != nil {
//	    return err
//	}
//	err := mgr.Subscribe(ctx, "local", "home/#", message.AtLeastOnce)
package session
