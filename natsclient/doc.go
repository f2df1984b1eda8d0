// Package natsclient wraps a NATS connection for publishing matched records.
//
// The client owns one *nats.Conn, tracks its status, and retries the initial
// connect with exponential backoff (pkg/retry). After that the NATS library's
// own reconnect logic takes over; status changes are reported through an
// optional callback so the metrics layer can follow them.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("tubewatch"),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Publish(ctx, "tubewatch.posts", data)
//
// Publish returns ErrNotConnected while the connection is down; callers
// decide whether that is worth more than a log line.
package natsclient
