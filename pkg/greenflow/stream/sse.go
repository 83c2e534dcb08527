package stream

import (
	"fmt"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
)

// ServeSSE streams tail messages as server-sent events until the client
// disconnects.
func (t *Tailer) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	gauge := metrics.StreamSubscribers.WithLabelValues("sse")
	gauge.Inc()
	defer gauge.Dec()

	klog.V(2).InfoS("SSE subscriber connected", "remote", r.RemoteAddr)
	err := t.Run(r.Context(), func(payload []byte) error {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return r.Context().Err()
	})
	klog.V(2).InfoS("SSE subscriber disconnected", "remote", r.RemoteAddr, "err", err)
}
