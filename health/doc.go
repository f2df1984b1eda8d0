// Package health reports the state of tubewatch's moving parts.
//
// Components that can fail independently (the feed supervisor, each output
// sink) implement Reporter. A Monitor polls every registered Reporter when
// asked and folds the results into one Status, which the metrics server
// exposes on /health:
//
//	mon := health.NewMonitor()
//	mon.Register("firehose", supervisor)
//	mon.Register("file", sink)
//	status := mon.Aggregate("tubewatch")
//
// Aggregation rules: any unhealthy child makes the parent unhealthy, else any
// degraded child makes it degraded, else it is healthy.
//
// Messages built from errors go through FromError, which strips URLs, paths,
// addresses and credentials before they reach the endpoint.
package health
