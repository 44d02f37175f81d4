package metrics

import (
	"strconv"
	"time"
)

// VerificationFinished records a terminal verification status and its duration.
func VerificationFinished(chainID uint64, status string, d time.Duration) {
	if !Enabled() {
		return
	}
	verificationTotal.WithLabelValues(strconv.FormatUint(chainID, 10), status).Inc()
	verificationDuration.WithLabelValues(status).Observe(d.Seconds())
}

// VerificationStarted increments the in-flight gauge; call the returned func when done.
func VerificationStarted() func() {
	if !Enabled() {
		return func() {}
	}
	g := verificationsRunning
	g.Inc()
	return g.Dec
}

// ExplorerPoll records one status poll by its classified outcome, e.g. "pending".
func ExplorerPoll(outcome string) {
	if !Enabled() {
		return
	}
	explorerPollsTotal.WithLabelValues(outcome).Inc()
}

// ExplorerSubmit records a submission outcome: "accepted", "rejected", "already_verified" or "error".
func ExplorerSubmit(chainID uint64, result string) {
	if !Enabled() {
		return
	}
	explorerSubmitTotal.WithLabelValues(strconv.FormatUint(chainID, 10), result).Inc()
}
