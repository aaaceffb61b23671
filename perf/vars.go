package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency   = metric.NewHistogram("1m1s")
	EventsPerSecond   = metric.NewCounter("10s1s")
	HellosPerSecond   = metric.NewCounter("10s1s")
	WarningsPerSecond = metric.NewCounter("10s1s")
	FramesPerSecond   = metric.NewCounter("10s1s")
	BytesPerSecond    = metric.NewCounter("10s1s")
	LostPerSecond     = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("kdtm:Events/s", EventsPerSecond)
	expvar.Publish("kdtm:Hellos/s", HellosPerSecond)
	expvar.Publish("kdtm:Warnings/s", WarningsPerSecond)
	expvar.Publish("kdtm:Frames/s", FramesPerSecond)
	expvar.Publish("kdtm:Bytes/s", BytesPerSecond)
	expvar.Publish("kdtm:Lost/s", LostPerSecond)
	expvar.Publish("kdtm:DispatchLatency (µs)", DispatchLatency)
}
