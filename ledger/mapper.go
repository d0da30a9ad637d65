package ledger

// Prepare converts a draft into its persisted form. The input buffer fields
// are dropped, the transaction date is converted to store time, and a new
// record (isEdit false) gets a commit-time registration date.
func Prepare(d Draft, isEdit bool) (Record, error) {
	txDate, err := d.TransactionDate.Timestamp()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Amount:           d.Amount,
		Kind:             d.Kind,
		Category:         d.Category,
		Description:      d.Description,
		TransactionDate:  txDate,
		RegistrationDate: d.RegistrationDate,
		ProductID:        d.ProductID,
		ProductName:      d.ProductName,
	}
	if d.SoldSizes != nil {
		rec.SoldSizes = append([]SoldSize(nil), d.SoldSizes...)
	}
	if !isEdit {
		rec.RegistrationDate = ServerTimestamp()
	}
	return rec, nil
}
