package domain

// Bank is an entry of the bank directory accounts are opened against.
type Bank struct {
	ID   string
	Name string
}
