package domain

import "time"

// OAuthSession is the short-lived state saved between OAuth initiation and
// the authorization callback.
type OAuthSession struct {
	State     string    `json:"state"`
	Shop      string    `json:"shop"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"created_at"`
}
