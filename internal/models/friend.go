package models

import "time"

// FriendEdge is a directed request from RequesterID to TargetID. At most one
// edge exists per unordered pair.
type FriendEdge struct {
	ID          int64
	RequesterID int64
	TargetID    int64
	Confirmed   bool
	CreatedAt   time.Time
}

func (e FriendEdge) Touches(userID int64) bool {
	return e.RequesterID == userID || e.TargetID == userID
}

// Other returns the endpoint that is not userID.
func (e FriendEdge) Other(userID int64) int64 {
	if e.RequesterID == userID {
		return e.TargetID
	}
	return e.RequesterID
}

type Friend struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Confirmed bool   `json:"confirmed"`
	Avatar    string `json:"avatar"`
}
