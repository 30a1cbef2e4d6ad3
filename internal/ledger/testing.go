package ledger

// SeedBalance is a test helper that overwrites the balance of an account when
// using the in-memory ledger.
func SeedBalance(l Ledger, number string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		account := mem.accounts[number]
		account.Balance = amount
		mem.accounts[number] = account
	}
}
