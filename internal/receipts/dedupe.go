package receipts

import "example.com/receipt-tracker/backend/internal/models"

// tripKey identifies the same trip across uploads regardless of receipt id.
type tripKey struct {
	date    string
	time    string
	amount  float64
	pickup  string
	dropoff string
}

func keyOf(receipt models.Receipt) tripKey {
	return tripKey{
		date:    receipt.Date,
		time:    receipt.Time,
		amount:  receipt.Amount,
		pickup:  receipt.PickupLocation,
		dropoff: receipt.DropoffLocation,
	}
}

// ExcludeStored moves added receipts whose trip is already in stored into Duplicates.
// Callers run it against a fresh read of the store right before persisting.
func (r *BatchResult) ExcludeStored(stored []models.Receipt) {
	if len(r.Added) == 0 || len(stored) == 0 {
		return
	}

	seen := indexTrips(stored)
	kept := make([]models.Receipt, 0, len(r.Added))
	for _, receipt := range r.Added {
		if _, exists := seen[keyOf(receipt)]; exists {
			r.Duplicates = append(r.Duplicates, Duplicate{FileName: receipt.FileName, Data: receipt})
			continue
		}
		kept = append(kept, receipt)
	}
	r.Added = kept
}

func indexTrips(receipts []models.Receipt) map[tripKey]struct{} {
	index := make(map[tripKey]struct{}, len(receipts))
	for _, receipt := range receipts {
		index[keyOf(receipt)] = struct{}{}
	}
	return index
}
