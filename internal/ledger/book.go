package ledger

import (
	"errors"
	"fmt"
	"sync"

	"cpamm/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// InsufficientBalanceError names the account that could not cover a debit.
type InsufficientBalanceError struct {
	Owner     model.Address
	Mint      model.Address
	Balance   uint64
	Requested uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: owner %s mint %s has %d, needs %d", ErrInsufficientBalance, e.Owner, e.Mint, e.Balance, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Posting moves Amount of Mint into (Credit) or out of (!Credit) Owner's balance.
type Posting struct {
	Owner  model.Address
	Mint   model.Address
	Amount uint64
	Credit bool
}

func Debit(owner, mint model.Address, amount uint64) Posting {
	return Posting{Owner: owner, Mint: mint, Amount: amount}
}

func Credit(owner, mint model.Address, amount uint64) Posting {
	return Posting{Owner: owner, Mint: mint, Amount: amount, Credit: true}
}

// Reverse returns the postings that undo ps.
func Reverse(ps []Posting) []Posting {
	out := make([]Posting, len(ps))
	for i, p := range ps {
		p.Credit = !p.Credit
		out[len(ps)-1-i] = p
	}
	return out
}

type account struct {
	owner model.Address
	mint  model.Address
}

// Book holds owner balances per mint. Post applies a group of postings atomically.
type Book struct {
	mu       sync.Mutex
	balances map[account]uint64
}

func NewBook() *Book {
	return &Book{balances: make(map[account]uint64)}
}

func (b *Book) Balance(owner, mint model.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account{owner, mint}]
}

// Post applies every posting or none of them.
func (b *Book) Post(ps ...Posting) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[account]uint64, len(ps))
	for _, p := range ps {
		if p.Amount == 0 {
			continue
		}
		acc := account{p.Owner, p.Mint}
		bal, ok := next[acc]
		if !ok {
			bal = b.balances[acc]
		}
		if p.Credit {
			if bal+p.Amount < bal {
				return fmt.Errorf("%w: owner %s mint %s", ErrBalanceOverflow, p.Owner, p.Mint)
			}
			bal += p.Amount
		} else {
			if p.Amount > bal {
				return &InsufficientBalanceError{Owner: p.Owner, Mint: p.Mint, Balance: bal, Requested: p.Amount}
			}
			bal -= p.Amount
		}
		next[acc] = bal
	}

	for acc, bal := range next {
		if bal == 0 {
			delete(b.balances, acc)
			continue
		}
		b.balances[acc] = bal
	}
	return nil
}

// Balances returns every non-zero balance of owner keyed by mint.
func (b *Book) Balances(owner model.Address) map[model.Address]uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[model.Address]uint64)
	for acc, bal := range b.balances {
		if acc.owner == owner {
			out[acc.mint] = bal
		}
	}
	return out
}
