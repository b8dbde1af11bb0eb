package core

import "oraclevault/pkg/domain"

// requireOwner enforces the single-owner access model: only the identity
// that created a record may drive its protocol operations.
func requireOwner(record Record, caller string) error {
	if caller == "" || caller != record.Owner {
		return domain.ErrNotAuthorized{RecordID: record.ID, Caller: caller}
	}
	return nil
}
