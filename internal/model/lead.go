// internal/model/lead.go
package model

type ContactStatus string

const (
	ContactStatusUntouched ContactStatus = "untouched"
	ContactStatusContacted ContactStatus = "contacted"
	ContactStatusErrored   ContactStatus = "errored"
	ContactStatusLost      ContactStatus = "lost"
)

type Lead struct {
	ID            int64         `db:"id" json:"id"`
	Address       string        `db:"address" json:"address"`
	Name          string        `db:"name" json:"name"`
	Category      string        `db:"category" json:"category"`
	City          string        `db:"city" json:"city"`
	State         string        `db:"state" json:"state"`
	ContactStatus ContactStatus `db:"contact_status" json:"contact_status"`
}
