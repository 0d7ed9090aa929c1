package models

import "github.com/google/uuid"

// assignID fills a zero primary key on insert. Postgres defaults to gen_random_uuid(),
// but the sqlite test database has no such function.
func assignID(id *uuid.UUID) error {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	return nil
}
