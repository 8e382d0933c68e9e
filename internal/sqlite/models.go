package sqlite

import "time"

type Delivery struct {
	ID         string
	Event      string
	ReceivedAt int64 `db:"received_at"`
}

func (d Delivery) Received() time.Time {
	return time.Unix(d.ReceivedAt, 0).UTC()
}

type Claim struct {
	Repo        string
	IssueNumber int   `db:"issue_number"`
	ClaimedAt   int64 `db:"claimed_at"`
}
