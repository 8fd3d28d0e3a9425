package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// IsTerminalStatus reports whether no further transition is legal from status.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

const (
	LocationShop      = "shop"
	LocationResidence = "residence"
)

const (
	FeeNone = "none"
	FeeFull = "full"
)

const (
	// DefaultCancellationWindowHours is the free cancellation window after confirmation.
	DefaultCancellationWindowHours = 24

	// TrackingRateLimit is the number of id+secret lookups allowed per window.
	TrackingRateLimit = 10

	// TrackingRateWindow is the lookup rate-limit window in seconds.
	TrackingRateWindow = 60

	// OutboxQueueSize is the in-memory notification queue size.
	OutboxQueueSize = 128

	// DefaultExportRangeDays is the export period when none is given.
	DefaultExportRangeDays = 30
)
