package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// MemoryStore is an in-process Store implementation backing fast unit
// tests for the business logic in reservation/dispute/penalty/payout,
// mirroring the teacher's ledger.MemoryStore convention (a map-backed store
// guarded by a single RWMutex, with its own monotonic id counters).
type MemoryStore struct {
	mu sync.RWMutex

	wallets      map[int64]*Wallet
	walletByUser map[int64]int64
	holds        map[int64]*FundsHold
	txs          map[int64]*Transaction
	txByIdemKey  map[string]int64

	nextWalletID int64
	nextHoldID   int64
	nextTxID     int64
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[int64]*Wallet),
		walletByUser: make(map[int64]int64),
		holds:        make(map[int64]*FundsHold),
		txs:          make(map[int64]*Transaction),
		txByIdemKey:  make(map[string]int64),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetOrCreate(_ context.Context, userID int64) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.walletByUser[userID]; ok {
		w := *s.wallets[id]
		return &w, nil
	}
	s.nextWalletID++
	now := time.Now().UTC()
	w := &Wallet{
		ID:        s.nextWalletID,
		UserID:    userID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[w.ID] = w
	s.walletByUser[userID] = w.ID
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) GetByUserID(_ context.Context, userID int64) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.walletByUser[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *s.wallets[id]
	return &cp, nil
}

func (s *MemoryStore) ConfigureAutoTopup(_ context.Context, walletID int64, cfg AutoTopup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ErrWalletNotFound
	}
	w.AutoTopup = cfg
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, walletID int64, status Status, graceEndsAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ErrWalletNotFound
	}
	w.Status = status
	w.GracePeriodEndsAt = graceEndsAt
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Topup(_ context.Context, walletID int64, amount money.Cents, idemKey, processorChargeID string, processorFailed bool, graceEndsAt time.Time) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txByIdemKey[idemKey]; ok {
		cp := *s.txs[existing]
		return &cp, nil
	}

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}

	now := time.Now().UTC()
	s.nextTxID++
	tx := &Transaction{
		ID:                s.nextTxID,
		WalletID:          walletID,
		Type:              TxTopup,
		Amount:            amount,
		NetAmount:         amount,
		IdempotencyKey:    idemKey,
		ProcessorChargeID: processorChargeID,
		CreatedAt:         now,
	}

	if processorFailed {
		tx.Status = TxStatusFailed
		w.Status = StatusGracePeriod
		w.GracePeriodEndsAt = &graceEndsAt
		w.LastFailedTopupAt = &now
	} else {
		tx.Status = TxStatusCompleted
		tx.CompletedAt = &now
		w.Balance = w.Balance.Add(amount)
	}
	w.UpdatedAt = now

	s.txs[tx.ID] = tx
	s.txByIdemKey[idemKey] = tx.ID
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) Reserve(_ context.Context, walletID, shiftID int64, amount money.Cents, kind HoldKind, expiresAt *time.Time, idemKey string) (*FundsHold, *Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txByIdemKey[idemKey]; ok {
		tx := *s.txs[existing]
		for _, h := range s.holds {
			if h.WalletID == walletID && h.ShiftID == shiftID && h.Kind == kind && h.CreatedAt.Equal(tx.CreatedAt) {
				hc := *h
				return &hc, &tx, nil
			}
		}
		return nil, &tx, nil
	}

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, nil, ErrWalletNotFound
	}
	for _, h := range s.holds {
		if h.WalletID == walletID && h.ShiftID == shiftID && h.Kind == kind && h.Status == HoldActive {
			return nil, nil, ErrDuplicateHold
		}
	}

	now := time.Now().UTC()
	s.nextHoldID++
	hold := &FundsHold{
		ID:        s.nextHoldID,
		WalletID:  walletID,
		ShiftID:   shiftID,
		Amount:    amount,
		Kind:      kind,
		Status:    HoldActive,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.holds[hold.ID] = hold

	w.Reserved = w.Reserved.Add(amount)
	w.UpdatedAt = now

	s.nextTxID++
	tx := &Transaction{
		ID:             s.nextTxID,
		WalletID:       walletID,
		Type:           TxReserve,
		Amount:         amount,
		NetAmount:      amount,
		Status:         TxStatusCompleted,
		IdempotencyKey: idemKey,
		RelatedShiftID: &shiftID,
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	s.txs[tx.ID] = tx
	s.txByIdemKey[idemKey] = tx.ID

	hc, tc := *hold, *tx
	return &hc, &tc, nil
}

func (s *MemoryStore) ReleaseHold(_ context.Context, holdID int64, txType TransactionType, idemKey string) (*FundsHold, *Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txByIdemKey[idemKey]; ok {
		tx := *s.txs[existing]
		h := *s.holds[holdID]
		return &h, &tx, nil
	}

	hold, ok := s.holds[holdID]
	if !ok {
		return nil, nil, ErrHoldNotFound
	}
	w, ok := s.wallets[hold.WalletID]
	if !ok {
		return nil, nil, ErrWalletNotFound
	}

	now := time.Now().UTC()
	hold.Status = HoldReleased
	hold.ReleasedAt = &now
	hold.UpdatedAt = now

	w.Reserved = w.Reserved.Sub(hold.Amount)
	w.Balance = w.Balance // balance untouched; released funds simply become available again
	w.UpdatedAt = now

	s.nextTxID++
	tx := &Transaction{
		ID:             s.nextTxID,
		WalletID:       hold.WalletID,
		Type:           txType,
		Amount:         hold.Amount,
		NetAmount:      hold.Amount,
		Status:         TxStatusCompleted,
		IdempotencyKey: idemKey,
		RelatedShiftID: &hold.ShiftID,
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	s.txs[tx.ID] = tx
	s.txByIdemKey[idemKey] = tx.ID

	hc, tc := *hold, *tx
	return &hc, &tc, nil
}

func (s *MemoryStore) Settle(_ context.Context, payerWalletID, recipientWalletID, payerHoldID int64, gross, commission, recipientAmount money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refundKey := idemKeyBase + ":refund"
	commissionKey := idemKeyBase + ":commission"
	settlementKey := idemKeyBase + ":settlement"

	if existing, ok := s.txByIdemKey[commissionKey]; ok {
		var out []*Transaction
		if rid, ok := s.txByIdemKey[refundKey]; ok {
			cp := *s.txs[rid]
			out = append(out, &cp)
		}
		cp := *s.txs[existing]
		out = append(out, &cp)
		if sid, ok := s.txByIdemKey[settlementKey]; ok {
			cp2 := *s.txs[sid]
			out = append(out, &cp2)
		}
		return out, nil
	}

	payer, ok := s.wallets[payerWalletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	recipient, ok := s.wallets[recipientWalletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	hold, ok := s.holds[payerHoldID]
	if !ok {
		return nil, ErrHoldNotFound
	}

	now := time.Now().UTC()
	hold.Status = HoldSettled
	hold.UpdatedAt = now

	payer.Reserved = payer.Reserved.Sub(hold.Amount)

	var out []*Transaction

	// The hold never left Balance (Reserve only earmarks a portion of it via
	// Reserved), so releasing Reserved above already restored any unused
	// portion to Available. This entry is a record of that unused portion,
	// not a further Balance mutation — crediting it again would double count.
	if diff := hold.Amount.Sub(gross); diff.IsPositive() {
		s.nextTxID++
		refundTx := &Transaction{
			ID: s.nextTxID, WalletID: payerWalletID, Type: TxRefund, Amount: diff, NetAmount: diff,
			Status: TxStatusCompleted, IdempotencyKey: refundKey, RelatedShiftID: &relatedShiftID,
			CreatedAt: now, CompletedAt: &now,
		}
		s.txs[refundTx.ID] = refundTx
		s.txByIdemKey[refundKey] = refundTx.ID
		cp := *refundTx
		out = append(out, &cp)
	}

	payer.Balance = payer.Balance.Sub(gross)
	s.nextTxID++
	commissionTx := &Transaction{
		ID: s.nextTxID, WalletID: payerWalletID, Type: TxCommission, Amount: commission, NetAmount: commission,
		Status: TxStatusCompleted, IdempotencyKey: commissionKey, RelatedShiftID: &relatedShiftID,
		CreatedAt: now, CompletedAt: &now,
	}
	s.txs[commissionTx.ID] = commissionTx
	s.txByIdemKey[commissionKey] = commissionTx.ID
	cp := *commissionTx
	out = append(out, &cp)

	recipient.Balance = recipient.Balance.Add(recipientAmount)
	s.nextTxID++
	settlementTx := &Transaction{
		ID: s.nextTxID, WalletID: recipientWalletID, Type: TxSettlement, Amount: recipientAmount, NetAmount: recipientAmount,
		Status: TxStatusCompleted, IdempotencyKey: settlementKey, RelatedShiftID: &relatedShiftID,
		CreatedAt: now, CompletedAt: &now,
	}
	s.txs[settlementTx.ID] = settlementTx
	s.txByIdemKey[settlementKey] = settlementTx.ID
	cp2 := *settlementTx
	out = append(out, &cp2)

	payer.UpdatedAt = now
	recipient.UpdatedAt = now

	return out, nil
}

func (s *MemoryStore) ReleaseCompensation(_ context.Context, payerWalletID, partyWalletID, holdID int64, compensation, refund money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	compKey := idemKeyBase + ":compensation"
	refundKey := idemKeyBase + ":refund"

	if existing, ok := s.txByIdemKey[refundKey]; ok {
		var out []*Transaction
		if cid, ok := s.txByIdemKey[compKey]; ok {
			cp := *s.txs[cid]
			out = append(out, &cp)
		}
		cp := *s.txs[existing]
		out = append(out, &cp)
		return out, nil
	}

	payer, ok := s.wallets[payerWalletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	hold, ok := s.holds[holdID]
	if !ok {
		return nil, ErrHoldNotFound
	}

	now := time.Now().UTC()
	hold.Status = HoldReleased
	hold.ReleasedAt = &now
	hold.UpdatedAt = now
	payer.Reserved = payer.Reserved.Sub(hold.Amount)

	var out []*Transaction

	if compensation.IsPositive() {
		party, ok := s.wallets[partyWalletID]
		if !ok {
			return nil, ErrWalletNotFound
		}
		party.Balance = party.Balance.Add(compensation)
		party.UpdatedAt = now
		payer.Balance = payer.Balance.Sub(compensation)

		s.nextTxID++
		compTx := &Transaction{
			ID: s.nextTxID, WalletID: partyWalletID, Type: TxCancellationFee, Amount: compensation, NetAmount: compensation,
			Status: TxStatusCompleted, IdempotencyKey: compKey, RelatedShiftID: &relatedShiftID,
			CreatedAt: now, CompletedAt: &now,
		}
		s.txs[compTx.ID] = compTx
		s.txByIdemKey[compKey] = compTx.ID
		cp := *compTx
		out = append(out, &cp)
	}

	// As in Settle, the un-compensated remainder of the hold was never
	// removed from Balance; releasing Reserved above already made it
	// available again. This entry records that remainder, it does not
	// credit Balance a second time.
	if refund.IsPositive() {
		s.nextTxID++
		refundTx := &Transaction{
			ID: s.nextTxID, WalletID: payerWalletID, Type: TxRefund, Amount: refund, NetAmount: refund,
			Status: TxStatusCompleted, IdempotencyKey: refundKey, RelatedShiftID: &relatedShiftID,
			CreatedAt: now, CompletedAt: &now,
		}
		s.txs[refundTx.ID] = refundTx
		s.txByIdemKey[refundKey] = refundTx.ID
		cp := *refundTx
		out = append(out, &cp)
	}

	payer.UpdatedAt = now
	return out, nil
}

func (s *MemoryStore) debitCreditTx(walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string, credit bool) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.txByIdemKey[idemKey]; ok {
		cp := *s.txs[existing]
		return &cp, nil
	}

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	now := time.Now().UTC()
	if credit {
		w.Balance = w.Balance.Add(amount)
	} else {
		w.Balance = w.Balance.Sub(amount)
	}
	w.UpdatedAt = now

	s.nextTxID++
	tx := &Transaction{
		ID: s.nextTxID, WalletID: walletID, Type: txType, Amount: amount, NetAmount: amount,
		Status: TxStatusCompleted, IdempotencyKey: idemKey, RelatedShiftID: relatedShiftID,
		CreatedAt: now, CompletedAt: &now,
	}
	s.txs[tx.ID] = tx
	s.txByIdemKey[idemKey] = tx.ID
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) Debit(_ context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error) {
	return s.debitCreditTx(walletID, amount, txType, relatedShiftID, idemKey, false)
}

func (s *MemoryStore) Credit(_ context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error) {
	return s.debitCreditTx(walletID, amount, txType, relatedShiftID, idemKey, true)
}

func (s *MemoryStore) GetHold(_ context.Context, id int64) (*FundsHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[id]
	if !ok {
		return nil, ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *MemoryStore) GetActiveHold(_ context.Context, walletID, shiftID int64, kind HoldKind) (*FundsHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.holds {
		if h.WalletID == walletID && h.ShiftID == shiftID && h.Kind == kind && h.Status == HoldActive {
			cp := *h
			return &cp, nil
		}
	}
	return nil, ErrHoldNotFound
}

func (s *MemoryStore) ListExpiredHolds(_ context.Context, before time.Time, limit int) ([]*FundsHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FundsHold
	for _, h := range s.holds {
		if h.Status == HoldActive && h.ExpiresAt != nil && h.ExpiresAt.Before(before) {
			cp := *h
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) GetTransactionByIdempotencyKey(_ context.Context, idemKey string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.txByIdemKey[idemKey]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *s.txs[id]
	return &cp, nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id int64) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, walletID int64, limit, offset int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, tx := range s.txs {
		if tx.WalletID == walletID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (s *MemoryStore) Reverse(_ context.Context, transactionID int64, reason string, adminID int64) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orig, ok := s.txs[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if orig.ReversedAt != nil {
		return nil, ErrAlreadyReversed
	}
	w, ok := s.wallets[orig.WalletID]
	if !ok {
		return nil, ErrWalletNotFound
	}

	now := time.Now().UTC()
	orig.ReversedAt = &now

	s.nextTxID++
	reversal := &Transaction{
		ID: s.nextTxID, WalletID: orig.WalletID, Type: orig.Type, Amount: orig.Amount, NetAmount: orig.Amount,
		Status: TxStatusCompleted, IdempotencyKey: idKey("reverse", transactionID),
		Description: reason, CreatedAt: now, CompletedAt: &now, ReversalOfID: &transactionID,
	}
	// A reversal inverts the original's effect on balance: credits become
	// debits and vice versa, matching the sign the original transaction
	// type implies.
	switch orig.Type {
	case TxTopup, TxSettlement, TxRefund:
		w.Balance = w.Balance.Sub(orig.Amount)
	default:
		w.Balance = w.Balance.Add(orig.Amount)
	}
	w.UpdatedAt = now

	s.txs[reversal.ID] = reversal
	s.txByIdemKey[reversal.IdempotencyKey] = reversal.ID
	cp := *reversal
	return &cp, nil
}

func idKey(prefix string, id int64) string {
	return prefix + ":" + itoa(id)
}

func itoa(id int64) string {
	if id == 0 {
		return "0"
	}
	neg := id < 0
	if neg {
		id = -id
	}
	var buf [20]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (s *MemoryStore) SumActiveHolds(_ context.Context, walletID int64) (money.Cents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum money.Cents
	for _, h := range s.holds {
		if h.WalletID == walletID && h.Status == HoldActive {
			sum = sum.Add(h.Amount)
		}
	}
	return sum, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Wallet
	for _, w := range s.wallets {
		if w.Status == status {
			cp := *w
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPayable(_ context.Context, minAvailable money.Cents, roles []string, limit int) ([]*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Wallet
	for _, w := range s.wallets {
		if w.Available().GreaterEq(minAvailable) {
			cp := *w
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
