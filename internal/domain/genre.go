package domain

import "time"

// Genre groups books in the catalog. BookCount is denormalized and is
// maintained in the same transaction as the book mutation that changes a
// genre assignment.
type Genre struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	BookCount int       `json:"bookCount"`
	CreatedAt time.Time `json:"createdAt"`
}
