package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Vehicle struct {
	bun.BaseModel `bun:"table:vehicles"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Slug      string    `bun:"slug" json:"slug"`
	Category  string    `bun:"category" json:"category"`
	Seats     int       `bun:"seats" json:"seats"`
	Active    bool      `bun:"active" json:"active"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
