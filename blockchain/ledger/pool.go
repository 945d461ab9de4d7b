package ledger

import "voterchain-backend/models"

// transactionPool buffers submitted transactions until the next block is
// sealed. It is not safe for concurrent use on its own; the owning Ledger's
// mutex guards it together with the chain.
type transactionPool struct {
	pending []models.Transaction
}

func (p *transactionPool) submit(tx models.Transaction) {
	p.pending = append(p.pending, tx)
}

// drain returns the buffered transactions in submission order and resets the
// pool. Callers must only drain once the transactions are safely sealed.
func (p *transactionPool) drain() []models.Transaction {
	txs := p.pending
	p.pending = nil
	return txs
}

// removeLast discards the most recently submitted transaction, used to back
// out a submission whose seal failed.
func (p *transactionPool) removeLast() {
	if len(p.pending) > 0 {
		p.pending = p.pending[:len(p.pending)-1]
	}
}

func (p *transactionPool) size() int {
	return len(p.pending)
}
