package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnnouncementMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsticket_announcement_mutations_total",
		Help: "Total announcement mutations by action",
	}, []string{"action"})

	BroadcastEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsticket_broadcast_events_total",
		Help: "Total events pushed to the fan-out hub by type",
	}, []string{"type"})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "whatsticket_subscribers",
		Help: "Current number of connected event subscribers",
	})

	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whatsticket_storage_errors_total",
		Help: "Total attachment storage I/O failures",
	})

	OrphanFilesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whatsticket_orphan_files_swept_total",
		Help: "Total orphaned attachment files removed by the sweep job",
	})
)

func IncAnnouncementMutation(action string) {
	label := strings.TrimSpace(action)
	if label == "" {
		label = "unknown"
	}
	AnnouncementMutations.WithLabelValues(label).Inc()
}

func IncBroadcastEvents(eventType string) {
	label := strings.TrimSpace(eventType)
	if label == "" {
		label = "unknown"
	}
	BroadcastEvents.WithLabelValues(label).Inc()
}

func SetSubscriberCount(count int) {
	if count < 0 {
		count = 0
	}
	Subscribers.Set(float64(count))
}

func IncStorageError() {
	StorageErrors.Inc()
}

func AddOrphanFilesSwept(count int) {
	if count <= 0 {
		return
	}
	OrphanFilesSwept.Add(float64(count))
}
