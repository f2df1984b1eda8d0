// Package firehose maintains the subscription to the Bluesky Jetstream feed.
//
// # State machine
//
//	disconnected -> connecting -> connected -> disconnected -> ...
//	                    |                           |
//	                    +-------> disconnected      +--> exhausted (terminal)
//
// A Supervisor dials the configured endpoint with gorilla/websocket. On a
// successful handshake it resets the backoff and the run statistics, starts a
// new session id and prints the status banner. Frames are read one at a time
// and handed synchronously to the Handler, so processing order is arrival
// order and nothing is buffered.
//
// Every cycle that ends, whether the dial failed or an established connection
// dropped, counts as one failed attempt. The delay before the next attempt is
// min(1s * 2^(N-1), 300s) after N consecutive failures. Once the attempt
// budget (1000 by default) is spent, Run reports "Max retries reached" and
// returns errors.ErrMaxRetriesExceeded without dialing again.
//
// # Heartbeat
//
// While connected a ping is written every PingInterval and must be answered
// by a pong within PingTimeout. Data frames do not count as an answer: a
// peer that keeps streaming but never pongs is dropped like any other
// transport failure. Separately, a connection silent for
// PingInterval+PingTimeout hits its read deadline.
//
// # Shutdown
//
// Cancelling the context passed to Run aborts a dial, a blocked read or a
// backoff sleep immediately. That path is a clean shutdown: the final status
// line is printed once and Run returns nil.
package firehose
