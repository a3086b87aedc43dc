package service

import "github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

// Notifier receives committed score and pass changes. The websocket hub
// implements it to push live updates.
type Notifier interface {
	PointsAwarded(userID int64, rule string, awarded, total int64)
	PassRecorded(userID int64, res domain.LedgerResult)
}

type nopNotifier struct{}

func (nopNotifier) PointsAwarded(int64, string, int64, int64) {}
func (nopNotifier) PassRecorded(int64, domain.LedgerResult)   {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
